package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the assistant's Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Queries         *prometheus.CounterVec
	QueryLatency    prometheus.Histogram
	QueryErrors     *prometheus.CounterVec
	EvictedSessions prometheus.Counter
	WakeDetections  prometheus.Counter
	SpeechRequests  *prometheus.CounterVec
}

// New registers the metrics on reg. liveSessions backs the session gauge.
func New(reg prometheus.Registerer, liveSessions func() int) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		// Queries by response status: success or error
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buddy_queries_total",
			Help: "Total number of conversational queries by status",
		}, []string{"status"}),

		QueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "buddy_query_duration_seconds",
			Help:    "Query latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		QueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buddy_query_errors_total",
			Help: "Total number of failed queries by error code",
		}, []string{"error_code"}),

		EvictedSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "buddy_sessions_evicted_total",
			Help: "Total number of idle sessions evicted",
		}),

		WakeDetections: factory.NewCounter(prometheus.CounterOpts{
			Name: "buddy_wake_word_detections_total",
			Help: "Total number of wake word detections",
		}),

		// Speech calls by kind (recognize, synthesize) and outcome
		SpeechRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buddy_speech_requests_total",
			Help: "Total number of speech service calls by kind and outcome",
		}, []string{"kind", "outcome"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "buddy_sessions_active",
		Help: "Current number of live conversation sessions",
	}, func() float64 {
		if liveSessions != nil {
			return float64(liveSessions())
		}
		return 0
	})

	return m
}

// RecordQuery records a processed query and its latency
func (m *Metrics) RecordQuery(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(status).Inc()
	m.QueryLatency.Observe(seconds)
}

// RecordQueryError records a failed query
func (m *Metrics) RecordQueryError(code string) {
	if m == nil {
		return
	}
	m.QueryErrors.WithLabelValues(code).Inc()
}

// RecordEvictions records evicted sessions
func (m *Metrics) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EvictedSessions.Add(float64(n))
}

// RecordWakeDetection records a wake word hit
func (m *Metrics) RecordWakeDetection() {
	if m == nil {
		return
	}
	m.WakeDetections.Inc()
}

// RecordSpeech records a speech service call
func (m *Metrics) RecordSpeech(kind, outcome string) {
	if m == nil {
		return
	}
	m.SpeechRequests.WithLabelValues(kind, outcome).Inc()
}
