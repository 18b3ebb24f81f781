package cachestore

import (
	"fmt"

	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
)

type CacheErrorCause string

const (
	ErrCauseLockTimeout  CacheErrorCause = "lock timeout"
	ErrCauseLockFailure  CacheErrorCause = "lock failure"
	ErrCauseCorrupt      CacheErrorCause = "cache file corrupt"
	ErrCauseSerialize    CacheErrorCause = "serialization failed"
	ErrCauseWriteFailure CacheErrorCause = "write failed"
	ErrCauseBackupFailed CacheErrorCause = "backup failed"
)

type CacheError struct {
	Message   string
	Retryable bool
	Cause     CacheErrorCause
	Path      string
	Err       error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: %s: %s", e.Cause, e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func (e *CacheError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *CacheError) IsRetryable() bool {
	return e.Retryable
}

// mapCacheErrorToMetadataCause maps cache-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapCacheErrorToMetadataCause(err *CacheError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseCorrupt:
		return metadata.CauseContentInvalid
	case ErrCauseLockTimeout, ErrCauseLockFailure, ErrCauseWriteFailure, ErrCauseBackupFailed:
		return metadata.CauseStorageFailure
	case ErrCauseSerialize:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
