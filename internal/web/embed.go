// Package web provides the embedded HTML templates and static assets for the
// results view.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

var (
	parseOnce sync.Once
	parsed    *template.Template
	parseErr  error
)

// Templates returns the parsed templates. Parsing happens once.
func Templates() (*template.Template, error) {
	parseOnce.Do(func() {
		parsed, parseErr = template.ParseFS(templateFiles, "templates/*.html")
	})
	return parsed, parseErr
}

// GetFileSystem returns the embedded static assets with the static folder as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// RegisterStaticRoutes serves the embedded assets under /static/.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	e.GET("/static/*", echo.WrapHandler(fileServer))
	return nil
}
