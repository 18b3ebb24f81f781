package scheduler

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
)

var ErrEmptyKeyword = errors.New("keyword must not be empty")

type ChapterErrorCause string

const (
	ErrCauseDetailUnavailable ChapterErrorCause = "chapter detail unavailable"
	ErrCausePanic             ChapterErrorCause = "chapter task panicked"
	ErrCauseListingCorrupt    ChapterErrorCause = "cached chapter listing corrupt"
)

// ChapterError is a failure isolated to one chapter task. It never stops
// the other chapters of the search.
type ChapterError struct {
	Message   string
	ChapterID string
	Cause     ChapterErrorCause
	Err       error
}

func (e *ChapterError) Error() string {
	return fmt.Sprintf("chapter %s: %s: %s", e.ChapterID, e.Cause, e.Message)
}

func (e *ChapterError) Unwrap() error {
	return e.Err
}

func (e *ChapterError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func mapChapterErrorToMetadataCause(err *ChapterError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseDetailUnavailable:
		return metadata.CauseNetworkFailure
	case ErrCausePanic:
		return metadata.CauseInvariantViolation
	case ErrCauseListingCorrupt:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
