package api

import (
	"fmt"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
)

type APIErrorCause string

const (
	ErrCauseMalformedEnvelope APIErrorCause = "malformed response envelope"
	ErrCauseEmptyPayload      APIErrorCause = "empty payload"
)

type APIError struct {
	Message  string
	Cause    APIErrorCause
	Endpoint string
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s: %s", e.Cause, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Decoding failures are never retried.
func (e *APIError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func mapAPIErrorToMetadataCause(err *APIError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseMalformedEnvelope, ErrCauseEmptyPayload:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
