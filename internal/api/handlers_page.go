// handlers_page.go - HTML results view
package api

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oacracker/photoqa/internal/render"
)

// PageHandlerImpl implements the PageHandler interface
type PageHandlerImpl struct {
	jobs JobStore
}

// NewPageHandler creates a new HTML page handler
func NewPageHandler(jobs JobStore) PageHandler {
	return &PageHandlerImpl{jobs: jobs}
}

// HandleUploadPage renders an upload as a self-refreshing HTML page.
func (h *PageHandlerImpl) HandleUploadPage(c echo.Context) error {
	id := c.Param("id")
	upload, ok := h.jobs.Get(id)
	if !ok {
		return NewNotFoundError("upload", id)
	}

	var buf bytes.Buffer
	if err := render.WriteHTML(&buf, render.Build(upload)); err != nil {
		return NewInternalError("failed to render upload", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
