package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels used for fingerprint calls besides the error kinds.
const (
	OutcomeOK     = "ok"
	OutcomeCached = "cached"
)

// Metrics holds the Prometheus collectors for the bridge. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	calls     *prometheus.CounterVec
	duration  prometheus.Histogram
	released  prometheus.Counter
	fedFrames prometheus.Counter
	scanned   *prometheus.CounterVec
}

// New registers the bridge collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fpbridge",
			Name:      "fingerprint_calls_total",
			Help:      "Fingerprint calls by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fpbridge",
			Name:      "fingerprint_duration_seconds",
			Help:      "Wall time spent computing a fingerprint.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fpbridge",
			Name:      "contexts_released_total",
			Help:      "Fingerprint contexts released.",
		}),
		fedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fpbridge",
			Name:      "fed_frames_total",
			Help:      "PCM frames fed to fingerprint engines.",
		}),
		scanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fpbridge",
			Name:      "scanned_files_total",
			Help:      "Files processed by directory scans and the watcher.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.calls, m.duration, m.released, m.fedFrames, m.scanned)
	return m
}

// ObserveCall records the outcome and latency of one fingerprint call.
func (m *Metrics) ObserveCall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ContextReleased counts a released fingerprint context.
func (m *Metrics) ContextReleased() {
	if m == nil {
		return
	}
	m.released.Inc()
}

// FramesFed adds to the number of frames handed to an engine.
func (m *Metrics) FramesFed(n int) {
	if m == nil {
		return
	}
	m.fedFrames.Add(float64(n))
}

// FileScanned records a scanned file by status (ok, cached, failed, removed).
func (m *Metrics) FileScanned(status string) {
	if m == nil {
		return
	}
	m.scanned.WithLabelValues(status).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ScannedFiles returns the counter of scanned files with status, mostly for tests.
func (m *Metrics) ScannedFiles(status string) prometheus.Counter {
	return m.scanned.WithLabelValues(status)
}
