// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oacracker/photoqa/internal/config"
	"github.com/oacracker/photoqa/internal/storage"
	"github.com/oacracker/photoqa/internal/web"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Jobs    JobStore
	Media   storage.Store // optional
	Config  *config.AppConfig
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Upload UploadHandler
	Page   PageHandler
	Media  MediaHandler // nil when photos are not stored
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	var allowed func(string) bool
	media := ""
	if deps.Config != nil {
		allowed = deps.Config.IsAllowedFile
		if deps.Media != nil {
			media = deps.Config.Server.MediaBackend
		}
	}
	h := &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Jobs, media),
		Upload: NewUploadHandler(deps.Jobs, deps.Media, allowed),
		Page:   NewPageHandler(deps.Jobs),
	}
	if deps.Media != nil {
		h.Media = NewMediaHandler(deps.Media)
	}
	return h
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) error {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Upload routes, with the trailing slash clients expect
	uploadGroup := e.Group("/api/uploads")
	uploadGroup.POST("/", handlers.Upload.HandleCreateUpload)
	uploadGroup.GET("/", handlers.Upload.HandleListUploads)
	uploadGroup.GET("/:id/", handlers.Upload.HandleGetUpload)
	uploadGroup.GET("/:id", handlers.Upload.HandleGetUpload)

	// HTML results view and the photos it links to
	e.GET("/uploads/:id", handlers.Page.HandleUploadPage)
	if handlers.Media != nil {
		e.GET(storage.URLPrefix+"/uploads/:upload/:file", handlers.Media.HandleGetMedia)
	}

	return web.RegisterStaticRoutes(e)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.ServerConfig, logger *slog.Logger) {
	e.HTTPErrorHandler = ErrorHandler
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper:     skipQuietRoutes,
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
				if v.Error != nil {
					logger.Warn("request", append(attrs, "err", v.Error)...)
					return nil
				}
				logger.Info("request", attrs...)
				return nil
			},
		}))
	}

	e.Use(middleware.Recover())

	if cfg.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
}

// skipQuietRoutes keeps status polls and health checks out of the request log.
func skipQuietRoutes(c echo.Context) bool {
	req := c.Request()
	if req.URL.Path == "/api/health" {
		return true
	}
	return req.Method == "GET" && strings.HasPrefix(req.URL.Path, "/api/uploads/") && len(req.URL.Path) > len("/api/uploads/")
}
