package storage_test

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/api"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
)

type recordedError struct {
	packageName string
	action      string
	cause       metadata.ErrorCause
	attrs       []metadata.Attribute
}

type recordedArtifact struct {
	kind  metadata.ArtifactKind
	path  string
	attrs []metadata.Attribute
}

// recordingSink keeps the error and artifact events a LocalSink emits.
type recordingSink struct {
	metadata.NoopSink
	mu        sync.Mutex
	errors    []recordedError
	artifacts []recordedArtifact
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
	r.errors = append(r.errors, recordedError{
		packageName: packageName,
		action:      action,
		cause:       cause,
		attrs:       attrs,
	})
}

func (r *recordingSink) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, recordedArtifact{kind: kind, path: path, attrs: attrs})
}

func (r *recordingSink) lastError() recordedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errors) == 0 {
		return recordedError{}
	}
	return r.errors[len(r.errors)-1]
}

func (r *recordingSink) lastArtifact() recordedArtifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.artifacts) == 0 {
		return recordedArtifact{}
	}
	return r.artifacts[len(r.artifacts)-1]
}

func testQuestion(id string, text string) api.QuestionDetail {
	raw, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"_id":      id,
			"question": map[string]string{"text": text},
		},
	})
	return api.NewQuestionDetail(raw)
}

// attrValue finds an attribute value by key in a slice of attributes
func attrValue(attrs []metadata.Attribute, key metadata.AttributeKey) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}
