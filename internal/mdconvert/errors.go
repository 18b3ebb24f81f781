package mdconvert

import (
	"fmt"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
)

type ConversionErrorCause string

const (
	ErrCauseParseFailure      ConversionErrorCause = "html parse failed"
	ErrCauseConversionFailure ConversionErrorCause = "markdown conversion failed"
)

// ConversionError is never retryable: the same fragment fails the same way.
type ConversionError struct {
	Message string
	Cause   ConversionErrorCause
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error: %s: %s", e.Cause, e.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func (e *ConversionError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func mapConversionErrorToMetadataCause(err *ConversionError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseParseFailure, ErrCauseConversionFailure:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
