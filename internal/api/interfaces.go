// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/oacracker/photoqa/internal/models"
)

// UploadHandler handles photo batch operations
type UploadHandler interface {
	HandleCreateUpload(c echo.Context) error
	HandleListUploads(c echo.Context) error
	HandleGetUpload(c echo.Context) error
}

// PageHandler serves the HTML results view
type PageHandler interface {
	HandleUploadPage(c echo.Context) error
}

// MediaHandler serves stored photos
type MediaHandler interface {
	HandleGetMedia(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// JobStore is the subset of the job manager the handlers need.
type JobStore interface {
	Create(filenames []string) *models.Upload
	Get(id string) (*models.Upload, bool)
	List(page, size int) ([]*models.Upload, int)
	SetImageURL(uploadID, photoID, url string) bool
	Delete(id string) bool
}
