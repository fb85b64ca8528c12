// Command devserver runs an in-memory stand-in for the photo processing
// backend so the photoqa client can be developed and demoed offline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oacracker/photoqa/internal/api"
	"github.com/oacracker/photoqa/internal/config"
	"github.com/oacracker/photoqa/internal/jobs"
	"github.com/oacracker/photoqa/internal/logging"
	"github.com/oacracker/photoqa/internal/scheduler"
	"github.com/oacracker/photoqa/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "photoqa.yaml", "path to the YAML config file")
	flag.Parse()

	// Load YAML configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, level, cfg.Logging.NoColor)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize job manager
	jobMgr := jobs.NewManager(jobs.Options{
		StepDelay: cfg.Server.StepDelay,
		Providers: cfg.Server.Providers,
		Logger:    logger,
	})
	defer jobMgr.Close()

	// Initialize photo storage
	media, err := openMedia(ctx, &cfg.Server)
	if err != nil {
		logger.Error("failed to initialize storage", "backend", cfg.Server.MediaBackend, "err", err)
		os.Exit(1)
	}

	// Start background cleanup of finished uploads
	cleanup := scheduler.Start(ctx, cfg.Server.CleanupInterval, func(ctx context.Context) bool {
		removed := jobMgr.CleanupOldJobs(cfg.Server.Retention)
		if media != nil {
			for _, id := range removed {
				if err := media.DeleteUpload(ctx, id); err != nil {
					logger.Warn("failed to delete upload media", "id", id, "err", err)
				}
			}
		}
		if len(removed) > 0 {
			logger.Info("removed old uploads", "count", len(removed))
		}
		return false
	}, scheduler.WithLogger(logger))
	defer cleanup.Stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, &cfg.Server, logger)
	handlers := api.NewHandlers(&api.Dependencies{
		Jobs:    jobMgr,
		Media:   media,
		Config:  cfg,
		Version: Version,
	})
	if err := api.RegisterRoutes(e, handlers); err != nil {
		logger.Error("failed to register routes", "err", err)
		os.Exit(1)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("photoqa dev server",
		"version", Version,
		"build", BuildTime,
		"listen", "http://"+cfg.GetServerAddr(),
		"step_delay", cfg.Server.StepDelay,
		"media", cfg.Server.MediaBackend,
		"providers", cfg.Server.Providers)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}
}

// openMedia returns the configured photo store, or nil when photos are not
// kept.
func openMedia(ctx context.Context, cfg *config.ServerConfig) (storage.Store, error) {
	switch cfg.MediaBackend {
	case config.MediaBackendLocal:
		return storage.NewLocalStore(cfg.MediaDir)
	case config.MediaBackendMinio:
		return storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Bucket:    cfg.Minio.Bucket,
		})
	}
	return nil, nil
}
