package scheduler_test

import (
	"sync"
	"testing"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/internal/scheduler"
	"github.com/rohmanhakim/pyq-crawler/internal/storage"
)

const testSubject = "615f0c729476412f48314dab"

func searchParam(keyword string) scheduler.SearchParam {
	return scheduler.SearchParam{
		SubjectID:       testSubject,
		Keyword:         keyword,
		ChapterCacheKey: "chapters_Physics",
	}
}

type schedulerFixture struct {
	scheduler *scheduler.Scheduler
	finalizer *mockFinalizer
	sink      *errorRecordingSink
	cache     *memCache
	outputDir string
}

// createSchedulerForTest wires a scheduler around remote with an in-memory
// cache and a real output sink in a temp dir.
func createSchedulerForTest(t *testing.T, remote scheduler.RemoteAPI, concurrency int) schedulerFixture {
	t.Helper()
	finalizer := newMockFinalizer(t)
	sink := &errorRecordingSink{}
	cache := newMemCache()
	outputDir := t.TempDir()
	s := scheduler.NewSchedulerWithDeps(
		finalizer,
		sink,
		remote,
		cache,
		storage.NewLocalSink(&metadata.NoopSink{}),
		outputDir,
		concurrency,
	)
	return schedulerFixture{
		scheduler: s,
		finalizer: finalizer,
		sink:      sink,
		cache:     cache,
		outputDir: outputDir,
	}
}

// totalRecorder records SetTotal alongside reports.
type totalRecorder struct {
	mu      sync.Mutex
	total   int
	reports int
}

func (r *totalRecorder) SetTotal(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

func (r *totalRecorder) Report(increment int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports += increment
}
