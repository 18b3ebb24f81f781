package scheduler_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
)

// errorRecordingSink is a test double that keeps error causes
type errorRecordingSink struct {
	metadata.NoopSink

	mu     sync.Mutex
	causes []metadata.ErrorCause
	attrs  [][]metadata.Attribute
}

func (e *errorRecordingSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.causes = append(e.causes, cause)
	e.attrs = append(e.attrs, attrs)
}

func (e *errorRecordingSink) errorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.causes)
}

// mockFinalizer is a test double that captures final search statistics
type mockFinalizer struct {
	mu            sync.Mutex
	calls         int
	recordedStats *capturedStats
}

type capturedStats struct {
	totalChapters  int
	totalQuestions int
	totalMatches   int
	totalErrors    int
	duration       time.Duration
}

func newMockFinalizer(t *testing.T) *mockFinalizer {
	t.Helper()
	return &mockFinalizer{}
}

func (m *mockFinalizer) RecordFinalCrawlStats(
	totalChapters int,
	totalQuestions int,
	totalMatches int,
	totalErrors int,
	duration time.Duration,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.recordedStats = &capturedStats{
		totalChapters:  totalChapters,
		totalQuestions: totalQuestions,
		totalMatches:   totalMatches,
		totalErrors:    totalErrors,
		duration:       duration,
	}
}
