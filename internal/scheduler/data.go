package scheduler

import (
	"sync"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/api"
)

// SearchParam selects what one search walks and what it looks for.
type SearchParam struct {
	SubjectID       string
	Keyword         string
	ChapterCacheKey string
}

// MatchRecord is one question whose text contains the keyword.
type MatchRecord struct {
	SubjectID    string
	ChapterID    string
	ChapterTitle string
	QuestionID   string
	Detail       api.QuestionDetail
	// OutputPath is empty when the match could not be written.
	OutputPath string
}

type SearchOutcome int

const (
	OutcomeCompleted SearchOutcome = iota
	// OutcomeNoChapters means the listing was empty or unavailable.
	OutcomeNoChapters
	// OutcomeCancelled means ctx ended before every chapter was walked.
	OutcomeCancelled
)

func (o SearchOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeNoChapters:
		return "no chapters"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type SearchExecution struct {
	Matches []MatchRecord
	Outcome SearchOutcome
	// AnnouncedQuestions is the sum of question counts in the chapter listing.
	AnnouncedQuestions int
	TotalChapters      int
	TotalQuestions     int
	TotalErrors        int
	Duration           time.Duration
}

// searchState is shared by the chapter tasks of one search.
type searchState struct {
	param SearchParam

	mu         sync.Mutex
	matches    []MatchRecord
	questions  int
	errorCount int
}

func (st *searchState) addError() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.errorCount++
}
