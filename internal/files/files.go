// Package files models locally selected files and the previews derived from them.
package files

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// sniffLen is how many leading bytes are inspected for content detection.
const sniffLen = 512

// Handle is a selected file. Implementations must allow Open to be called
// more than once.
type Handle interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Local is a Handle backed by a path on disk.
type Local struct {
	Path string
}

// NewLocal returns a handle for path. The file is not touched until Open.
func NewLocal(path string) Local {
	return Local{Path: path}
}

// Name returns the base name that is sent as the part filename.
func (l Local) Name() string {
	return filepath.Base(l.Path)
}

// Open opens the file for reading.
func (l Local) Open() (io.ReadCloser, error) {
	return os.Open(l.Path)
}

// Memory is a Handle over an in-memory byte slice.
type Memory struct {
	FileName string
	Data     []byte
}

// Name returns the file name.
func (m Memory) Name() string {
	return m.FileName
}

// Open returns a reader over the data.
func (m Memory) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.Data)), nil
}

// ContentType guesses a MIME type from the file extension, falling back to
// application/octet-stream.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Preview is the thumbnail-equivalent summary shown for a selected file.
type Preview struct {
	Index       int
	Name        string
	Size        int64
	ContentType string
	Width       int
	Height      int
}

// String formats the preview for terminal output.
func (p Preview) String() string {
	dims := "?x?"
	if p.Width > 0 && p.Height > 0 {
		dims = fmt.Sprintf("%dx%d", p.Width, p.Height)
	}
	return fmt.Sprintf("[%d] %s (%s, %s, %d bytes)", p.Index+1, p.Name, p.ContentType, dims, p.Size)
}

// ReadPreview reads h fully and returns its preview. Image dimensions are
// filled for formats the standard decoders understand and left zero otherwise.
func ReadPreview(index int, h Handle) (Preview, error) {
	rc, err := h.Open()
	if err != nil {
		return Preview{}, fmt.Errorf("opening %s: %w", h.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Preview{}, fmt.Errorf("reading %s: %w", h.Name(), err)
	}

	p := Preview{
		Index: index,
		Name:  h.Name(),
		Size:  int64(len(data)),
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	p.ContentType = http.DetectContentType(head)

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		p.Width = cfg.Width
		p.Height = cfg.Height
	}

	return p, nil
}
