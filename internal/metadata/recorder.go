package metadata

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

/*
Logging Goals
- Debuggable search behavior
- Post-run auditability
- Failure diagnostics

Allowed values: primitives, timestamps, URLs as strings, hashes, status codes,
durations, identifiers (run id, subject id, chapter id, question id).

Metadata is write-only.
No component may read metadata to influence fetch, cache or crawl decisions.
*/

/*
Recorder captures structured events as zerolog lines tagged with a per-run
ULID and mirrors them into Prometheus counters.
It must not:
- perform I/O decisions
- affect control flow
Events from concurrent chapter tasks are not globally ordered.
*/
type Recorder struct {
	logger  zerolog.Logger
	runID   string
	metrics *Metrics

	mu    sync.Mutex
	stats *crawlStats
}

func NewRecorder(logger zerolog.Logger) *Recorder {
	runID := ulid.Make().String()
	return &Recorder{
		logger:  logger.With().Str("run_id", runID).Logger(),
		runID:   runID,
		metrics: NewMetrics(),
	}
}

func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) Metrics() *Metrics {
	return r.metrics
}

func (r *Recorder) Logger() zerolog.Logger {
	return r.logger
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	record := ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: errorString,
		observedAt:  observedAt,
		attrs:       attrs,
	}
	r.metrics.ErrorsTotal.WithLabelValues(packageName, cause.String()).Inc()

	event := r.logger.Error()
	if cause == CausePolicyDisallow {
		event = r.logger.Warn()
	}
	withAttrs(event, record.attrs).
		Time("observed_at", record.observedAt).
		Str("package", record.packageName).
		Str("action", record.action).
		Str("cause", record.cause.String()).
		Msg(record.errorString)
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
) {
	ev := FetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
	}
	class := statusClass(ev.httpStatus)
	r.metrics.FetchesTotal.WithLabelValues(class).Inc()
	r.metrics.FetchDurationSeconds.WithLabelValues(class).Observe(ev.duration.Seconds())
	if ev.retryCount > 0 {
		r.metrics.RetriesTotal.Add(float64(ev.retryCount))
	}

	r.logger.Debug().
		Str("url", ev.URL()).
		Int("status", ev.HTTPStatus()).
		Dur("duration", ev.Duration()).
		Str("content_type", ev.ContentType()).
		Int("retries", ev.RetryCount()).
		Msg("fetch")
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.metrics.ArtifactsTotal.WithLabelValues(string(kind)).Inc()
	withAttrs(r.logger.Debug(), attrs).
		Str("kind", string(kind)).
		Str("path", path).
		Msg("artifact written")
}

func (r *Recorder) RecordCachePersist(path string, entries int, duration time.Duration, err error) {
	if err != nil {
		r.metrics.CachePersistsTotal.WithLabelValues("failure").Inc()
		r.logger.Warn().
			Err(err).
			Str("path", path).
			Int("entries", entries).
			Msg("cache persist failed")
		return
	}
	r.metrics.CachePersistsTotal.WithLabelValues("success").Inc()
	r.logger.Debug().
		Str("path", path).
		Int("entries", entries).
		Dur("duration", duration).
		Msg("cache persisted")
}

/*
RecordFinalCrawlStats records a terminal, derived summary of a completed search.

Contract:
  - MUST be called exactly once per search, after it terminates.
  - The provided stats MUST be derived from scheduler state,
    not accumulated incrementally via the recorder.
*/
func (r *Recorder) RecordFinalCrawlStats(
	totalChapters int,
	totalQuestions int,
	totalMatches int,
	totalErrors int,
	duration time.Duration,
) {
	stats := crawlStats{
		totalChapters:  totalChapters,
		totalQuestions: totalQuestions,
		totalMatches:   totalMatches,
		totalErrors:    totalErrors,
		durationMs:     duration.Milliseconds(),
	}

	r.mu.Lock()
	r.stats = &stats
	r.mu.Unlock()

	r.metrics.SearchMatches.Set(float64(stats.totalMatches))
	r.metrics.SearchQuestions.Set(float64(stats.totalQuestions))

	r.logger.Info().
		Int("chapters", stats.totalChapters).
		Int("questions", stats.totalQuestions).
		Int("matches", stats.totalMatches).
		Int("errors", stats.totalErrors).
		Int64("duration_ms", stats.durationMs).
		Msg("search finished")
}

// FinalStatsRecorded reports whether RecordFinalCrawlStats has been called.
func (r *Recorder) FinalStatsRecorded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats != nil
}

func withAttrs(event *zerolog.Event, attrs []Attribute) *zerolog.Event {
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	return event
}

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
	)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
	RecordCachePersist(path string, entries int, duration time.Duration, err error)
}

type CrawlFinalizer interface {
	RecordFinalCrawlStats(
		totalChapters int,
		totalQuestions int,
		totalMatches int,
		totalErrors int,
		duration time.Duration,
	)
}

// NoopSink, struct that implements metadata.Sink but does nothing
// Scheduler (or Test) can decide whether to inject Recorder or NoopSink
// Purpose is to make metadata orthogonal
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
) {
}

func (n *NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

func (n *NoopSink) RecordCachePersist(path string, entries int, duration time.Duration, err error) {}

func (n *NoopSink) RecordFinalCrawlStats(
	totalChapters int,
	totalQuestions int,
	totalMatches int,
	totalErrors int,
	duration time.Duration,
) {
}
