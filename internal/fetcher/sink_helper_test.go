package fetcher_test

import (
	"sync"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
)

// mockMetadataSink is a test double for metadata.MetadataSink
type mockMetadataSink struct {
	mu          sync.Mutex
	fetchEvents []fetchEvent
	errorEvents []errorEvent
}

type fetchEvent struct {
	fetchUrl    string
	httpStatus  int
	contentType string
	retryCount  int
}

type errorEvent struct {
	action  string
	cause   metadata.ErrorCause
	details string
	attrs   []metadata.Attribute
}

func (m *mockMetadataSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchEvents = append(m.fetchEvents, fetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		contentType: contentType,
		retryCount:  retryCount,
	})
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorEvents = append(m.errorEvents, errorEvent{
		action:  action,
		cause:   cause,
		details: details,
		attrs:   attrs,
	})
}

func (m *mockMetadataSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
}

func (m *mockMetadataSink) RecordCachePersist(path string, entries int, duration time.Duration, err error) {
}

func (m *mockMetadataSink) causes() []metadata.ErrorCause {
	m.mu.Lock()
	defer m.mu.Unlock()
	causes := make([]metadata.ErrorCause, 0, len(m.errorEvents))
	for _, e := range m.errorEvents {
		causes = append(causes, e.cause)
	}
	return causes
}
