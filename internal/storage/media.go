// Package storage keeps the photos posted to the simulator so their image
// URLs resolve. Photos live on the local filesystem or in an S3 compatible
// bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// URLPrefix is the route stored photos are served under.
const URLPrefix = "/media"

// ErrNotFound is returned by Open when no photo is stored under the key.
var ErrNotFound = errors.New("media not found")

// Store defines the interface for photo storage.
type Store interface {
	// Save stores one photo and returns the URL path it is served at. size
	// may be -1 when unknown.
	Save(ctx context.Context, uploadID, photoID, name string, r io.Reader, size int64) (string, error)
	// Open returns a stored photo and its size. file is the last segment of
	// the URL returned by Save.
	Open(ctx context.Context, uploadID, file string) (io.ReadCloser, int64, error)
	DeleteUpload(ctx context.Context, uploadID string) error
}

// MediaURL returns the URL path a photo file is served at.
func MediaURL(uploadID, file string) string {
	return path.Join(URLPrefix, "uploads", uploadID, file)
}

// photoFile names a stored photo after its id, keeping the original
// extension.
func photoFile(photoID, name string) string {
	return photoID + strings.ToLower(filepath.Ext(name))
}

// LocalStore implements Store using the local filesystem. Photos live at
// <root>/uploads/<upload id>/<photo id><ext>.
type LocalStore struct {
	mu   sync.Mutex
	root string
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "uploads"), 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the media directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes one photo and returns the URL path it is served at.
func (s *LocalStore) Save(_ context.Context, uploadID, photoID, name string, r io.Reader, _ int64) (string, error) {
	if !safeSegment(uploadID) || !safeSegment(photoID) {
		return "", fmt.Errorf("invalid media key %q/%q", uploadID, photoID)
	}
	file := photoFile(photoID, name)

	dir := filepath.Join(s.root, "uploads", uploadID)
	s.mu.Lock()
	err := os.MkdirAll(dir, 0755)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	dest := filepath.Join(dir, file)
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return MediaURL(uploadID, file), nil
}

// Open returns a stored photo.
func (s *LocalStore) Open(_ context.Context, uploadID, file string) (io.ReadCloser, int64, error) {
	if !safeSegment(uploadID) || !safeSegment(file) {
		return nil, 0, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.root, "uploads", uploadID, file))
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("opening file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("opening file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, ErrNotFound
	}
	return f, info.Size(), nil
}

// DeleteUpload removes every photo stored for an upload.
func (s *LocalStore) DeleteUpload(_ context.Context, uploadID string) error {
	if !safeSegment(uploadID) {
		return fmt.Errorf("invalid upload id %q", uploadID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(s.root, "uploads", uploadID)); err != nil {
		return fmt.Errorf("deleting upload media: %w", err)
	}
	return nil
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

var _ Store = (*LocalStore)(nil)
