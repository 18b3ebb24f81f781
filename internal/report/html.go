package report

import (
	"bytes"
	"io"

	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rohmanhakim/pyq-crawler/internal/mdconvert"
)

// HTMLWriter renders the Markdown report as a standalone HTML page. Question
// links open in a new tab.
type HTMLWriter struct {
	baseWriter
	rule mdconvert.ConvertRule
}

func NewHTMLWriter(output io.Writer, rule mdconvert.ConvertRule) *HTMLWriter {
	return &HTMLWriter{
		baseWriter: newBaseWriter(output),
		rule:       rule,
	}
}

func (w *HTMLWriter) Write(r Report) (int, error) {
	var md bytes.Buffer
	if _, err := NewMarkdownWriter(&md, w.rule).Write(r); err != nil {
		return 0, &ReportError{
			Message: err.Error(),
			Cause:   ErrCauseRenderFailure,
		}
	}

	// A parser keeps state between documents, so each render gets a new one.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Matching questions for " + r.Keyword,
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})

	return w.output.Write(gomarkdown.ToHTML(md.Bytes(), p, renderer))
}
