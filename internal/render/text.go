package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/oacracker/photoqa/internal/models"
)

// WriteText writes p as plain terminal text.
func WriteText(w io.Writer, p Page) error {
	bw := bufio.NewWriter(w)

	if p.Notice != nil {
		fmt.Fprintf(bw, "%s\n", noticeLine(*p.Notice))
		return bw.Flush()
	}

	fmt.Fprintf(bw, "Status: %s (%d/%d, %.0f%%)\n", p.Status, p.Processed, p.Total, p.Percent)

	for i, photo := range p.Photos {
		fmt.Fprintf(bw, "\n[%d] %s", i+1, photo.Filename)
		if photo.QuestionStatus != "" {
			fmt.Fprintf(bw, " (%s)", photo.QuestionStatus)
		}
		bw.WriteString("\n")
		writeIndented(bw, "    Text: ", photo.Text)
		if photo.Error != "" {
			writeIndented(bw, "    Error: ", photo.Error)
		}

		for _, a := range photo.Answers {
			fmt.Fprintf(bw, "    - %s / %s [%s]", a.Provider, a.Model, a.Status)
			if extra := joinNonEmpty(", ", a.Tokens, a.Latency); extra != "" {
				fmt.Fprintf(bw, " %s", extra)
			}
			bw.WriteString("\n")
			writeIndented(bw, "      ", a.Content)
			if a.Error != "" {
				writeIndented(bw, "      error: ", a.Error)
			}
		}
	}

	return bw.Flush()
}

func noticeLine(n Notice) string {
	switch n.Kind {
	case NoticeError:
		return "Error: " + n.Message
	case NoticeValidation:
		return "! " + n.Message
	default:
		return n.Message
	}
}

// writeIndented writes text with prefix on the first line and the same
// indentation on continuation lines.
func writeIndented(w *bufio.Writer, prefix, text string) {
	pad := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if i == 0 {
			w.WriteString(prefix)
		} else {
			w.WriteString(pad)
		}
		w.WriteString(line)
		w.WriteString("\n")
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// WriteList writes a page of uploads as an aligned table.
func WriteList(w io.Writer, page *models.UploadPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPHOTOS\tCREATED")
	for _, u := range page.Results {
		created := "-"
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", u.ID, u.Status, u.ProcessedPhotos, u.TotalPhotos, created)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d upload(s) total\n", page.Count)
	return err
}
