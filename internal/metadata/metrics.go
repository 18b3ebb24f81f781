package metadata

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pyq"

// Metrics holds the counters the Recorder maintains. Each Recorder owns its
// own registry so runs and tests never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal         *prometheus.CounterVec
	FetchDurationSeconds *prometheus.HistogramVec
	RetriesTotal         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	ArtifactsTotal       *prometheus.CounterVec
	CachePersistsTotal   *prometheus.CounterVec
	SearchMatches        prometheus.Gauge
	SearchQuestions      prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Completed API requests by HTTP status class",
			},
			[]string{"status_class"},
		),
		FetchDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Wall time of a logical fetch including retries",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status_class"},
		),
		RetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "fetch",
				Name:      "retries_total",
				Help:      "Attempts repeated after a rate-limited response",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "errors_total",
				Help:      "Recorded errors by package and cause",
			},
			[]string{"package", "cause"},
		),
		ArtifactsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "artifacts_total",
				Help:      "Files written by kind",
			},
			[]string{"kind"},
		),
		CachePersistsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "cache",
				Name:      "persists_total",
				Help:      "Cache persist attempts by result",
			},
			[]string{"result"},
		),
		SearchMatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "search",
				Name:      "matches",
				Help:      "Matching questions found by the last search",
			},
		),
		SearchQuestions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "search",
				Name:      "questions",
				Help:      "Questions examined by the last search",
			},
		),
	}

	reg.MustRegister(
		m.FetchesTotal,
		m.FetchDurationSeconds,
		m.RetriesTotal,
		m.ErrorsTotal,
		m.ArtifactsTotal,
		m.CachePersistsTotal,
		m.SearchMatches,
		m.SearchQuestions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps every metric in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
