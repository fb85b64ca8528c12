// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	jobs    JobStore
	media   string
}

// NewHealthHandler creates a new health handler. media names the photo
// storage backend reported to clients.
func NewHealthHandler(version string, jobs JobStore, media string) HealthHandler {
	if media == "" {
		media = "none"
	}
	return &HealthHandlerImpl{
		version: version,
		jobs:    jobs,
		media:   media,
	}
}

// HandleHealth reports the simulator version, how many uploads it holds and
// where photos are stored.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	uploads := 0
	if h.jobs != nil {
		_, uploads = h.jobs.List(1, 1)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uploads": uploads,
		"media":   h.media,
	})
}
