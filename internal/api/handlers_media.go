// handlers_media.go - Stored photo downloads
package api

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/oacracker/photoqa/internal/storage"
)

// MediaHandlerImpl implements the MediaHandler interface
type MediaHandlerImpl struct {
	media storage.Store
}

// NewMediaHandler creates a handler serving photos from media
func NewMediaHandler(media storage.Store) MediaHandler {
	return &MediaHandlerImpl{media: media}
}

// HandleGetMedia streams one stored photo.
func (h *MediaHandlerImpl) HandleGetMedia(c echo.Context) error {
	uploadID := c.Param("upload")
	file := c.Param("file")

	rc, size, err := h.media.Open(c.Request().Context(), uploadID, file)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("photo", uploadID+"/"+file)
	}
	if err != nil {
		return NewInternalError("failed to read photo", err)
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(file))
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Stream(http.StatusOK, ct, rc)
}
