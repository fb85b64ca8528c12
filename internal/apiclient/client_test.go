package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oacracker/photoqa/internal/files"
	"github.com/oacracker/photoqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8000/api")
	assert.Error(t, err)
}

func TestCreateUpload_SendsOnePartPerFileInOrder(t *testing.T) {
	type part struct {
		field, filename, contentType, body string
	}
	var got []part

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/uploads/", r.URL.Path)

		reader, err := r.MultipartReader()
		require.NoError(t, err)
		for {
			p, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(p)
			got = append(got, part{p.FormName(), p.FileName(), p.Header.Get("Content-Type"), string(data)})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"abc","status":"pending","photos":[]}`)
	})

	upload, err := c.CreateUpload(context.Background(), []files.Handle{
		files.Memory{FileName: "b.png", Data: []byte("second-first")},
		files.Memory{FileName: "a.jpg", Data: []byte("then-this")},
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", upload.ID)
	assert.Equal(t, models.UploadStatusPending, upload.Status)
	require.Len(t, got, 2)
	assert.Equal(t, part{PhotosField, "b.png", "image/png", "second-first"}, got[0])
	assert.Equal(t, part{PhotosField, "a.jpg", "image/jpeg", "then-this"}, got[1])
}

func TestCreateUpload_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`, CodeHTTP},
		{"validation error", http.StatusBadRequest, `{"uploaded_photos":["This field is required."]}`, CodeHTTP},
		{"malformed json", http.StatusCreated, `{"id":`, CodeDecode},
		{"missing id", http.StatusCreated, `{"status":"pending"}`, CodeDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.CreateUpload(context.Background(), []files.Handle{files.Memory{FileName: "a.png"}})
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, "create upload", apiErr.Op)
			if tt.wantCode == CodeHTTP {
				assert.Equal(t, tt.status, StatusCode(err))
				assert.Equal(t, tt.body, apiErr.Details)
			}
		})
	}
}

func TestCreateUpload_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.CreateUpload(context.Background(), []files.Handle{files.Memory{FileName: "a.png"}})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeTransport, apiErr.Code)
	assert.Equal(t, 0, StatusCode(err))
}

type brokenHandle struct{}

func (brokenHandle) Name() string                 { return "broken.png" }
func (brokenHandle) Open() (io.ReadCloser, error) { return nil, errors.New("permission denied") }

func TestCreateUpload_UnreadableFileMakesNoRequest(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	_, err := c.CreateUpload(context.Background(), []files.Handle{brokenHandle{}})
	assert.ErrorContains(t, err, "permission denied")
	assert.Equal(t, 0, calls)
}

func TestGetUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/uploads/abc/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		io.WriteString(w, `{"id":"abc","status":"done","total_photos":1,"processed_photos":1,
			"photos":[{"filename":"a.png","question":{"extracted_text":"2+2=?","status":"answered",
			"answers":[{"provider":"openai","model":"gpt-x","content":"4","status":"complete"}]}}]}`)
	})

	upload, err := c.GetUpload(context.Background(), "abc")
	require.NoError(t, err)

	assert.True(t, upload.Status.IsTerminal())
	require.Len(t, upload.Photos, 1)
	q := upload.Photos[0].Question
	require.NotNil(t, q)
	require.NotNil(t, q.ExtractedText)
	assert.Equal(t, "2+2=?", *q.ExtractedText)
	require.Len(t, q.Answers, 1)
	assert.Equal(t, "4", *q.Answers[0].Content)
	assert.Equal(t, models.AnswerStatus("complete"), q.Answers[0].Status)
}

func TestGetUpload_NullQuestion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"abc","status":"processing","photos":[{"filename":"a.png","question":null}]}`)
	})

	upload, err := c.GetUpload(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, upload.Photos[0].Question)
}

func TestGetUpload_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
	})

	_, err := c.GetUpload(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.ErrorContains(t, err, "get upload")
}

func TestGetUpload_EmptyID(t *testing.T) {
	c, err := New("http://localhost:1")
	require.NoError(t, err)

	_, err = c.GetUpload(context.Background(), "")
	assert.Error(t, err)
}

func TestGetUpload_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := New(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = c.GetUpload(context.Background(), "abc")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeTransport, apiErr.Code)
}

func TestWithTimeout_LeavesSharedHTTPClientAlone(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	shared := &http.Client{}
	tests := []struct {
		name string
		opts []Option
	}{
		{"timeout first", []Option{WithTimeout(50 * time.Millisecond), WithHTTPClient(shared)}},
		{"client first", []Option{WithHTTPClient(shared), WithTimeout(50 * time.Millisecond)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(srv.URL, tt.opts...)
			require.NoError(t, err)

			_, err = c.GetUpload(context.Background(), "abc")
			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Zero(t, shared.Timeout)
		})
	}
}

func TestListUploads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/uploads/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		io.WriteString(w, `{"count":11,"next":null,"previous":"http://x/api/uploads/?page=1",
			"results":[{"id":"u11","status":"done","photos":[]}]}`)
	})

	page, err := c.ListUploads(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 11, page.Count)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "u11", page.Results[0].ID)
}

func TestBaseURLWithPathPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"id":"x","status":"pending"}`)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL + "/backend/")
	require.NoError(t, err)

	_, err = c.GetUpload(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotPath, "/backend/api/uploads/"))
}
