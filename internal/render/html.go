package render

import (
	"fmt"
	"io"

	"github.com/oacracker/photoqa/internal/web"
)

// WriteHTML writes p as a complete HTML document. Non-terminal pages refresh
// themselves every few seconds.
func WriteHTML(w io.Writer, p Page) error {
	return executeTemplate(w, "page", p)
}

// WriteHTMLFragment writes only the results region of p.
func WriteHTMLFragment(w io.Writer, p Page) error {
	return executeTemplate(w, "results", p)
}

func executeTemplate(w io.Writer, name string, p Page) error {
	tmpl, err := web.Templates()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	if err := tmpl.ExecuteTemplate(w, name, p); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return nil
}
