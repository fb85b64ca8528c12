// Package export writes finished upload records to disk in one of several
// encodings and reads them back.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oacracker/photoqa/internal/models"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported export extension %q (use .json, .yaml or .msgpack)", filepath.Ext(path))
	}
}

// Write encodes u to w.
func Write(w io.Writer, format Format, u *models.Upload) error {
	if u == nil {
		return fmt.Errorf("nothing to export")
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(u); err != nil {
			return err
		}
		return enc.Close()
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(u)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Read decodes an upload written by Write.
func Read(r io.Reader, format Format) (*models.Upload, error) {
	var u models.Upload
	var err error

	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&u)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&u)
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		err = dec.Decode(&u)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s export: %w", format, err)
	}
	return &u, nil
}

// WriteFile writes u to path, picking the format from its extension.
func WriteFile(path string, u *models.Upload) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(f, format, u); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s export: %w", format, err)
	}
	return f.Close()
}

// ReadFile loads an upload written by WriteFile.
func ReadFile(path string) (*models.Upload, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	return Read(f, format)
}
