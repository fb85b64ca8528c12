// Package apiclient talks to the upload backend's REST endpoints.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oacracker/photoqa/internal/files"
	"github.com/oacracker/photoqa/internal/models"
)

// PhotosField is the multipart field every selected file is sent under.
const PhotosField = "uploaded_photos"

const uploadsPath = "/api/uploads/"

// Client issues upload, status and list requests.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. The client is used as
// given and never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each request, including reading the response body.
// Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateUpload posts every file as one multipart part, in order, and returns
// the record the backend created.
func (c *Client) CreateUpload(ctx context.Context, selected []files.Handle) (*models.Upload, error) {
	const op = "create upload"

	body, contentType, err := encodePhotos(selected)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(uploadsPath, nil), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	var upload models.Upload
	status, err := c.do(op, req, &upload)
	if err != nil {
		return nil, err
	}
	if upload.ID == "" {
		return nil, newDecodeError(op, status, errors.New("response has no upload id"))
	}
	return &upload, nil
}

// GetUpload fetches the current record for id.
func (c *Client) GetUpload(ctx context.Context, id string) (*models.Upload, error) {
	const op = "get upload"

	if id == "" {
		return nil, fmt.Errorf("%s: empty upload id", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(uploadsPath+url.PathEscape(id)+"/", nil), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var upload models.Upload
	if _, err := c.do(op, req, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

// ListUploads fetches one page of past uploads, newest first. Pages start at 1.
func (c *Client) ListUploads(ctx context.Context, page int) (*models.UploadPage, error) {
	const op = "list uploads"

	if page < 1 {
		page = 1
	}
	query := url.Values{"page": []string{strconv.Itoa(page)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(uploadsPath, query), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result models.UploadPage
	if _, err := c.do(op, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(op string, req *http.Request, out any) (int, error) {
	if c.timeout > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), c.timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "url", req.URL.String(), "err", err)
		return 0, newTransportError(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request done",
		"op", op,
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, newStatusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, newDecodeError(op, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// encodePhotos builds the multipart body for an upload.
func encodePhotos(selected []files.Handle) (io.Reader, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for _, h := range selected {
		if err := writePart(writer, h); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func writePart(writer *multipart.Writer, h files.Handle) error {
	src, err := h.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", h.Name(), err)
	}
	defer src.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		PhotosField, escapeQuotes(h.Name())))
	header.Set("Content-Type", files.ContentType(h.Name()))

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("creating part for %s: %w", h.Name(), err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("writing %s: %w", h.Name(), err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
