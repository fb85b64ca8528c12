// handlers_upload.go - Photo batch handlers
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/oacracker/photoqa/internal/models"
	"github.com/oacracker/photoqa/internal/storage"
)

// PhotosField is the multipart field carrying the uploaded images.
const PhotosField = "uploaded_photos"

// PageSize is the number of uploads per listing page.
const PageSize = 10

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	jobs    JobStore
	media   storage.Store
	allowed func(name string) bool
}

// NewUploadHandler creates a new upload handler instance. Photos are kept in
// media when it is non-nil. allowed filters file names by extension; nil
// accepts everything.
func NewUploadHandler(jobs JobStore, media storage.Store, allowed func(name string) bool) UploadHandler {
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	return &UploadHandlerImpl{
		jobs:    jobs,
		media:   media,
		allowed: allowed,
	}
}

// HandleCreateUpload accepts a multipart batch of photos and starts
// processing it.
func (h *UploadHandlerImpl) HandleCreateUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart/form-data body", err)
	}

	photos := form.File[PhotosField]
	if len(photos) == 0 {
		return NewValidationError(PhotosField)
	}

	names := make([]string, 0, len(photos))
	for _, fh := range photos {
		if !h.allowed(fh.Filename) {
			return NewBadRequestError(fmt.Sprintf("unsupported file type: %s", fh.Filename), nil)
		}
		names = append(names, fh.Filename)
	}

	upload := h.jobs.Create(names)
	if h.media == nil {
		return c.JSON(http.StatusCreated, upload)
	}

	ctx := c.Request().Context()
	for i, fh := range photos {
		photoID := upload.Photos[i].ID
		src, err := fh.Open()
		if err != nil {
			h.discard(c, upload.ID)
			return NewBadRequestError("failed to read uploaded photo", err)
		}
		imageURL, err := h.media.Save(ctx, upload.ID, photoID, fh.Filename, src, fh.Size)
		src.Close()
		if err != nil {
			h.discard(c, upload.ID)
			return NewInternalError("failed to store photo", err)
		}
		h.jobs.SetImageURL(upload.ID, photoID, imageURL)
	}

	if stored, ok := h.jobs.Get(upload.ID); ok {
		upload = stored
	}
	return c.JSON(http.StatusCreated, upload)
}

// discard drops a partially stored upload so a failed create leaves no
// record or photos behind.
func (h *UploadHandlerImpl) discard(c echo.Context, uploadID string) {
	h.jobs.Delete(uploadID)
	if err := h.media.DeleteUpload(context.WithoutCancel(c.Request().Context()), uploadID); err != nil {
		slog.Warn("failed to delete media of discarded upload", "id", uploadID, "err", err)
	}
}

// HandleListUploads returns one page of uploads, newest first.
func (h *UploadHandlerImpl) HandleListUploads(c echo.Context) error {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return NewBadRequestError("invalid page number", err)
		}
		page = n
	}

	results, total := h.jobs.List(page, PageSize)
	if page > 1 && len(results) == 0 {
		return NewNotFoundError("page", strconv.Itoa(page))
	}

	resp := models.UploadPage{
		Count:   total,
		Results: results,
	}
	if page*PageSize < total {
		resp.Next = models.StringPtr(pageURL(c, page+1))
	}
	if page > 1 {
		resp.Previous = models.StringPtr(pageURL(c, page-1))
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetUpload returns the current state of one upload.
func (h *UploadHandlerImpl) HandleGetUpload(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return NewValidationError("id")
	}

	upload, ok := h.jobs.Get(id)
	if !ok {
		return NewNotFoundError("upload", id)
	}
	return c.JSON(http.StatusOK, upload)
}

// pageURL builds the absolute URL of another listing page.
func pageURL(c echo.Context, page int) string {
	u := url.URL{
		Scheme: c.Scheme(),
		Host:   c.Request().Host,
		Path:   c.Request().URL.Path,
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
