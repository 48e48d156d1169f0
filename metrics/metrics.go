// Package metrics exposes Prometheus collectors for the sanitization
// service. All observe methods are nil-safe so wiring metrics stays
// optional in tests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the service's counters and histograms.
type Metrics struct {
	uploadsTotal     *prometheus.CounterVec
	sanitizeTotal    *prometheus.CounterVec
	sanitizeDuration prometheus.Histogram
	chunksTotal      prometheus.Counter
	chunkRetries     prometheus.Counter
	objectsSwept     prometheus.Counter
}

// New registers the collectors on reg (DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doc_sanitizer",
			Subsystem: "upload",
			Name:      "requests_total",
			Help:      "Total upload requests",
		}, []string{"status"}),
		sanitizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doc_sanitizer",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total sanitize runs by outcome stage",
		}, []string{"outcome"}),
		sanitizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "doc_sanitizer",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "End-to-end sanitize run duration",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "doc_sanitizer",
			Subsystem: "engine",
			Name:      "chunks_total",
			Help:      "Total chunks sent to the model backend",
		}),
		chunkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "doc_sanitizer",
			Subsystem: "engine",
			Name:      "chunk_retries_total",
			Help:      "Total per-chunk retries after invalid model output",
		}),
		objectsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "doc_sanitizer",
			Subsystem: "store",
			Name:      "objects_swept_total",
			Help:      "Total expired objects reclaimed by the sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.uploadsTotal, m.sanitizeTotal, m.sanitizeDuration,
		m.chunksTotal, m.chunkRetries, m.objectsSwept)
	return m
}

func (m *Metrics) ObserveUpload(status string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSanitize(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.sanitizeTotal.WithLabelValues(outcome).Inc()
	m.sanitizeDuration.Observe(seconds)
}

func (m *Metrics) AddChunks(n int) {
	if m == nil {
		return
	}
	m.chunksTotal.Add(float64(n))
}

func (m *Metrics) IncChunkRetry() {
	if m == nil {
		return
	}
	m.chunkRetries.Inc()
}

func (m *Metrics) AddSwept(n int) {
	if m == nil {
		return
	}
	m.objectsSwept.Add(float64(n))
}
