package scheduler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/api"
	"github.com/rohmanhakim/pyq-crawler/internal/fetcher"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/stretchr/testify/mock"
)

// remoteMock is a testify mock for scheduler.RemoteAPI
type remoteMock struct {
	mock.Mock
}

func (m *remoteMock) ListChapters(ctx context.Context, subjectID string) (json.RawMessage, failure.ClassifiedError) {
	args := m.Called(ctx, subjectID)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, classified(args.Get(1))
}

func (m *remoteMock) ChapterDetail(ctx context.Context, chapterID string) (api.ChapterDetail, failure.ClassifiedError) {
	args := m.Called(ctx, chapterID)
	detail, _ := args.Get(0).(api.ChapterDetail)
	return detail, classified(args.Get(1))
}

func (m *remoteMock) QuestionDetail(ctx context.Context, questionID string) (api.QuestionDetail, failure.ClassifiedError) {
	args := m.Called(ctx, questionID)
	detail, _ := args.Get(0).(api.QuestionDetail)
	return detail, classified(args.Get(1))
}

func classified(v any) failure.ClassifiedError {
	if v == nil {
		return nil
	}
	return v.(failure.ClassifiedError)
}

func notFound() *fetcher.FetchError {
	return &fetcher.FetchError{
		Message:    "client error: 404",
		Cause:      fetcher.ErrCauseRequestRejected,
		StatusCode: http.StatusNotFound,
	}
}

func questionDoc(id string, text string) api.QuestionDetail {
	raw, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"_id":      id,
			"question": map[string]string{"text": text},
		},
	})
	return api.NewQuestionDetail(raw)
}

func chapterListing(chapters ...api.Chapter) json.RawMessage {
	raw, _ := json.Marshal(chapters)
	return raw
}

// fakeRemote serves a fixed hierarchy and counts calls. Chapter detail
// requests can be slowed down to observe how many run at once.
type fakeRemote struct {
	chapters      []api.Chapter
	details       map[string][]string
	questions     map[string]string
	failChapters  map[string]bool
	panicChapters map[string]bool
	failQuestions map[string]bool
	detailDelay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu            sync.Mutex
	listCalls     int
	questionCalls map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		details:       make(map[string][]string),
		questions:     make(map[string]string),
		failChapters:  make(map[string]bool),
		panicChapters: make(map[string]bool),
		failQuestions: make(map[string]bool),
		questionCalls: make(map[string]int),
	}
}

// addChapter registers a chapter whose questions carry the given texts.
func (f *fakeRemote) addChapter(id string, title string, texts map[string]string, order ...string) {
	f.chapters = append(f.chapters, api.Chapter{ID: id, Title: title, Questions: order})
	f.details[id] = order
	for qid, text := range texts {
		f.questions[qid] = text
	}
}

func (f *fakeRemote) ListChapters(ctx context.Context, subjectID string) (json.RawMessage, failure.ClassifiedError) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return chapterListing(f.chapters...), nil
}

func (f *fakeRemote) ChapterDetail(ctx context.Context, chapterID string) (api.ChapterDetail, failure.ClassifiedError) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.detailDelay > 0 {
		time.Sleep(f.detailDelay)
	}
	if f.panicChapters[chapterID] {
		panic(fmt.Sprintf("malformed chapter %s", chapterID))
	}
	if f.failChapters[chapterID] {
		return api.ChapterDetail{}, notFound()
	}
	return api.NewChapterDetail(f.details[chapterID]), nil
}

func (f *fakeRemote) QuestionDetail(ctx context.Context, questionID string) (api.QuestionDetail, failure.ClassifiedError) {
	f.mu.Lock()
	f.questionCalls[questionID]++
	f.mu.Unlock()

	if f.failQuestions[questionID] {
		return api.QuestionDetail{}, notFound()
	}
	return questionDoc(questionID, f.questions[questionID]), nil
}

func (f *fakeRemote) callsFor(questionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questionCalls[questionID]
}
