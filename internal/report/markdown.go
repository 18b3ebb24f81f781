package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/rohmanhakim/pyq-crawler/internal/mdconvert"
)

// MarkdownWriter builds a GitHub-flavored Markdown document: a summary table
// followed by one section per question.
type MarkdownWriter struct {
	baseWriter
	rule mdconvert.ConvertRule
}

func NewMarkdownWriter(output io.Writer, rule mdconvert.ConvertRule) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		rule:       rule,
	}
}

func (w *MarkdownWriter) Write(r Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, r)
	w.writeEntries(md, r)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r Report) {
	md.H1("Matching questions for \"" + r.Keyword + "\"")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Subject", subjectLabel(r)},
			{"Keyword", "`" + r.Keyword + "`"},
			{"Matches", strconv.Itoa(len(r.Entries))},
			{"Chapters", strconv.Itoa(r.TotalChapters)},
			{"Questions examined", strconv.Itoa(r.TotalQuestions)},
			{"Errors", strconv.Itoa(r.TotalErrors)},
			{"Outcome", r.Outcome},
			{"Generated", r.GeneratedAt.Format(time.RFC3339)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeEntries(md *markdown.Markdown, r Report) {
	md.H2("Questions")
	md.PlainText("")

	if r.IsEmpty() {
		md.PlainText(NoMatchesMessage)
		md.PlainText("")
		return
	}

	for _, e := range r.Entries {
		md.H3(markdown.Link(e.Title(), e.Link))
		md.PlainText("")
		if e.ChapterTitle != "" {
			md.PlainText("*" + e.ChapterTitle + "*")
			md.PlainText("")
		}
		md.PlainText(w.body(e))
		md.PlainText("")
	}
}

// body falls back to the plain text when the HTML cannot be converted.
func (w *MarkdownWriter) body(e Entry) string {
	if w.rule == nil {
		return mdconvert.PlainText(e.HTML)
	}
	result, err := w.rule.Convert(e.HTML)
	if err != nil {
		return mdconvert.PlainText(e.HTML)
	}
	return result.Markdown()
}

func subjectLabel(r Report) string {
	if r.SubjectName == "" {
		return "`" + r.SubjectID + "`"
	}
	return r.SubjectName + " (`" + r.SubjectID + "`)"
}
