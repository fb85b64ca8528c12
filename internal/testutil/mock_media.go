// mock_media.go - In-memory photo storage for handler tests
package testutil

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oacracker/photoqa/internal/storage"
)

// MockMedia implements storage.Store in memory, keyed by image URL.
// SaveErr is returned once FailAfter saves have succeeded.
type MockMedia struct {
	mu        sync.Mutex
	files     map[string][]byte
	saves     int
	SaveErr   error
	FailAfter int
}

// NewMockMedia creates an empty store.
func NewMockMedia() *MockMedia {
	return &MockMedia{files: make(map[string][]byte)}
}

func (m *MockMedia) Save(_ context.Context, uploadID, photoID, name string, r io.Reader, _ int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil && m.saves >= m.FailAfter {
		return "", m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	url := storage.MediaURL(uploadID, photoID+strings.ToLower(filepath.Ext(name)))
	m.saves++
	m.files[url] = data
	return url, nil
}

func (m *MockMedia) Open(_ context.Context, uploadID, file string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[storage.MediaURL(uploadID, file)]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *MockMedia) DeleteUpload(_ context.Context, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := storage.MediaURL(uploadID, "") + "/"
	for key := range m.files {
		if strings.HasPrefix(key, prefix) {
			delete(m.files, key)
		}
	}
	return nil
}

// Test Helper Methods

// File returns the bytes stored under an image URL.
func (m *MockMedia) File(url string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[url]
	return data, ok
}

// Count returns how many photos are stored.
func (m *MockMedia) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

var _ storage.Store = (*MockMedia)(nil)
