package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/rohmanhakim/pyq-crawler/internal/mdconvert"
)

// TextWriter prints entries for a terminal: title, link, then the question
// body with its markup stripped.
type TextWriter struct {
	baseWriter
}

func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

func (w *TextWriter) Write(r Report) (int, error) {
	if r.IsEmpty() {
		return fmt.Fprintln(w.output, NoMatchesMessage)
	}

	var sb strings.Builder
	for _, e := range r.Entries {
		sb.WriteString(e.Title())
		sb.WriteString("\n   ")
		sb.WriteString(e.Link)
		sb.WriteString("\n")
		if text := mdconvert.PlainText(e.HTML); text != "" {
			sb.WriteString("   ")
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return io.WriteString(w.output, sb.String())
}
