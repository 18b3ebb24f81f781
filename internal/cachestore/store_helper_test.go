package cachestore_test

import (
	"sync"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
)

type persistEvent struct {
	path    string
	entries int
	err     error
}

type recordingSink struct {
	metadata.NoopSink

	mu       sync.Mutex
	errors   []metadata.ErrorCause
	persists []persistEvent
	kinds    []metadata.ArtifactKind
}

func (r *recordingSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, cause)
}

func (r *recordingSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recordingSink) RecordCachePersist(path string, entries int, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persists = append(r.persists, persistEvent{path: path, entries: entries, err: err})
}

func (r *recordingSink) persistCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.persists)
}
