package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oacracker/photoqa/internal/api"
	"github.com/oacracker/photoqa/internal/config"
	"github.com/oacracker/photoqa/internal/export"
	"github.com/oacracker/photoqa/internal/jobs"
	"github.com/oacracker/photoqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	baseURL string
	config  string
	jobs    *jobs.Manager
}

func newCLI(t *testing.T) *cli {
	return newCLIWithDelay(t, 0)
}

func newCLIWithDelay(t *testing.T, stepDelay time.Duration) *cli {
	t.Helper()
	t.Setenv("PHOTOQA_POLL_INTERVAL", "20ms")

	cfg := config.DefaultConfig()
	cfg.Server.RequestLogging = false
	mgr := jobs.NewManager(jobs.Options{StepDelay: stepDelay, Providers: []string{"groq"}})
	t.Cleanup(mgr.Close)

	e := echo.New()
	api.SetupMiddleware(e, &cfg.Server, nil)
	require.NoError(t, api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{Jobs: mgr, Config: cfg})))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &cli{baseURL: srv.URL, config: filepath.Join(t.TempDir(), "missing.yaml"), jobs: mgr}
}

func (c *cli) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"-config", c.config, "-base-url", c.baseURL}, args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 3, 2))))
	require.NoError(t, f.Close())
	return path
}

func TestRun_UploadPrintsResultsAndExports(t *testing.T) {
	c := newCLI(t)
	dir := t.TempDir()
	img := writePNG(t, dir, "fractions.png")
	out := filepath.Join(dir, "result.json")

	code, stdout, stderr := c.run("upload", "-export", out, img)
	require.Equal(t, exitOK, code, stderr)

	assert.Contains(t, stdout, "selected [1] fractions.png (image/png, 3x2")
	assert.Contains(t, stdout, "Uploading and processing...")
	assert.Contains(t, stdout, "Status: done (1/1, 100%)")
	assert.Contains(t, stdout, "- groq / groq-stub [success]")

	saved, err := export.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusDone, saved.Status)
}

func TestRun_UploadWithoutFiles(t *testing.T) {
	c := newCLI(t)

	code, stdout, _ := c.run("upload")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stdout, "Please select at least one image.")
}

func TestRun_UploadRejectsNonImages(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	code, _, stderr := c.run("upload", path)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "is not an image")
}

func TestRun_UploadBackendDown(t *testing.T) {
	c := newCLI(t)
	c.baseURL = "http://127.0.0.1:1"
	img := writePNG(t, t.TempDir(), "a.png")

	code, stdout, _ := c.run("upload", img)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "Error: Upload failed")
}

func TestRun_StatusAndList(t *testing.T) {
	c := newCLI(t)
	img := writePNG(t, t.TempDir(), "a.png")
	code, _, stderr := c.run("upload", img)
	require.Equal(t, exitOK, code, stderr)

	code, stdout, _ := c.run("list")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "ID")
	assert.Contains(t, stdout, "1 upload(s) total")

	code, _, _ = c.run("status", "does-not-exist")
	assert.Equal(t, exitFailure, code)

	code, _, _ = c.run("status")
	assert.Equal(t, exitUsage, code)
}

func TestRun_StatusWatch(t *testing.T) {
	c := newCLIWithDelay(t, 50*time.Millisecond)
	created := c.jobs.Create([]string{"a.png", "b.png"})

	code, stdout, stderr := c.run("status", "-watch", created.ID)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Status: pending")
	assert.Contains(t, stdout, "Status: done (2/2, 100%)")
}

func TestRun_ConfigInit(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "photoqa.yaml")

	code, stdout, _ := c.run("config", "init", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Client.BaseURL, cfg.Client.BaseURL)

	code, _, _ = c.run("config", "init", path)
	assert.Equal(t, exitFailure, code, "existing file is not overwritten")
}

func TestRun_Usage(t *testing.T) {
	c := newCLI(t)

	code, _, _ := c.run()
	assert.Equal(t, exitUsage, code)

	code, _, stderr := c.run("frobnicate")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown command")

	code, _, _ = c.run("-log-level", "loud", "list")
	assert.Equal(t, exitUsage, code)
}
