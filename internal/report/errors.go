package report

import (
	"fmt"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
)

type ReportErrorCause string

const (
	ErrCauseUnknownFormat ReportErrorCause = "unknown report format"
	ErrCauseRenderFailure ReportErrorCause = "render failed"
	ErrCauseWriteFailure  ReportErrorCause = "write failed"
)

type ReportError struct {
	Message   string
	Retryable bool
	Cause     ReportErrorCause
	Path      string
}

func (e *ReportError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("report error: %s: %s: %s", e.Cause, e.Path, e.Message)
	}
	return fmt.Sprintf("report error: %s: %s", e.Cause, e.Message)
}

func (e *ReportError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapReportErrorToMetadataCause maps report errors to metadata.ErrorCause.
// This mapping is observational only and MUST NOT be used to derive
// control-flow decisions.
func mapReportErrorToMetadataCause(err *ReportError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	case ErrCauseRenderFailure:
		return metadata.CauseContentInvalid
	case ErrCauseUnknownFormat:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
