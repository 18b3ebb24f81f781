package report

import (
	"net/url"
	"strconv"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/scheduler"
	"github.com/rohmanhakim/pyq-crawler/pkg/urlutil"
)

// NoMatchesMessage is printed in place of an empty report.
const NoMatchesMessage = "No matching questions found."

// Entry is one numbered question in a report.
type Entry struct {
	Number       int
	QuestionID   string
	ChapterTitle string
	Year         string
	Link         string
	// HTML is the question body exactly as the API returned it.
	HTML string
}

// Title is the heading shown for the entry, e.g. "3. JEE Main 2021 (26 Feb Shift 1)".
func (e Entry) Title() string {
	return strconv.Itoa(e.Number) + ". " + e.Year
}

// Report is everything a writer needs to render one search.
type Report struct {
	SubjectName    string
	SubjectID      string
	Keyword        string
	Outcome        string
	Entries        []Entry
	TotalChapters  int
	TotalQuestions int
	TotalErrors    int
	GeneratedAt    time.Time
}

func (r Report) IsEmpty() bool {
	return len(r.Entries) == 0
}

// New numbers the matches of exec from 1 in the order they were found.
func New(
	subjectName string,
	param scheduler.SearchParam,
	exec scheduler.SearchExecution,
	linkBase url.URL,
	generatedAt time.Time,
) Report {
	return Report{
		SubjectName:    subjectName,
		SubjectID:      param.SubjectID,
		Keyword:        param.Keyword,
		Outcome:        exec.Outcome.String(),
		Entries:        NewEntries(exec.Matches, linkBase),
		TotalChapters:  exec.TotalChapters,
		TotalQuestions: exec.TotalQuestions,
		TotalErrors:    exec.TotalErrors,
		GeneratedAt:    generatedAt,
	}
}

func NewEntries(matches []scheduler.MatchRecord, linkBase url.URL) []Entry {
	entries := make([]Entry, 0, len(matches))
	for i, m := range matches {
		id := m.Detail.ID()
		if id == "" {
			id = m.QuestionID
		}
		entries = append(entries, Entry{
			Number:       i + 1,
			QuestionID:   id,
			ChapterTitle: m.ChapterTitle,
			Year:         m.Detail.Year(),
			Link:         urlutil.Endpoint(linkBase, nil, id),
			HTML:         m.Detail.Text(),
		})
	}
	return entries
}

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)
