package metadata

import (
	"time"
)

type FetchEvent struct {
	fetchUrl    string
	httpStatus  int
	duration    time.Duration
	contentType string
	retryCount  int
}

func (f FetchEvent) URL() string             { return f.fetchUrl }
func (f FetchEvent) HTTPStatus() int         { return f.httpStatus }
func (f FetchEvent) Duration() time.Duration { return f.duration }
func (f FetchEvent) ContentType() string     { return f.contentType }
func (f FetchEvent) RetryCount() int         { return f.retryCount }

/*
crawlStats
  - Represents a terminal, derived summary of a completed search
  - Contains only aggregate counts and durations
  - Is computed by the scheduler after the search terminates
  - Is recorded exactly once
  - Must not influence scheduling, retries, or termination
*/
type crawlStats struct {
	totalChapters  int
	totalQuestions int
	totalMatches   int
	totalErrors    int
	durationMs     int64
}

type ArtifactKind string

const (
	ArtifactMatchFile     ArtifactKind = "match_file"
	ArtifactReport        ArtifactKind = "report"
	ArtifactCacheSnapshot ArtifactKind = "cache_snapshot"
	ArtifactCacheBackup   ArtifactKind = "cache_backup"
)

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry, continuation, or abort decisions.
	 - Packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

  - The failure does not map cleanly to any known category.

# CauseNetworkFailure

  - Transport or remote availability failures: timeouts, DNS, resets, 5xx.

# CausePolicyDisallow

  - The remote refused the request: 401/403, 429 rate limiting.

# CauseContentInvalid

  - Data was read but could not be decoded: malformed API envelopes,
    a corrupt cache file.

# CauseStorageFailure

  - Failure while persisting the cache or output files: disk full,
    permissions, lock acquisition timeout.

# CauseInvariantViolation

  - A system-level invariant was violated: a panic inside a chapter task,
    impossible state transitions.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

type ErrorRecord struct {
	packageName string
	action      string
	cause       ErrorCause
	errorString string
	observedAt  time.Time
	attrs       []Attribute
}

func (e ErrorRecord) PackageName() string   { return e.packageName }
func (e ErrorRecord) Action() string        { return e.action }
func (e ErrorRecord) Cause() ErrorCause     { return e.cause }
func (e ErrorRecord) ErrorString() string   { return e.errorString }
func (e ErrorRecord) ObservedAt() time.Time { return e.observedAt }
func (e ErrorRecord) Attrs() []Attribute    { return e.attrs }

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrMethod     AttributeKey = "method"
	AttrPath       AttributeKey = "path"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrAttempt    AttributeKey = "attempt"
	AttrDelay      AttributeKey = "delay"
	AttrSubjectID  AttributeKey = "subject_id"
	AttrChapterID  AttributeKey = "chapter_id"
	AttrQuestionID AttributeKey = "question_id"
	AttrCacheKey   AttributeKey = "cache_key"
	AttrWritePath  AttributeKey = "write_path"
	AttrHash       AttributeKey = "hash"
	AttrStack      AttributeKey = "stack"
)
