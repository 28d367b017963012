// Package metrics exposes the daemon's self-observability counters over
// HTTP as its own Prometheus exporter.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram the orchestrator and its
// components report against.
type Metrics struct {
	registry *prometheus.Registry

	classifications   *prometheus.CounterVec
	readinessTimeouts prometheus.Counter
	dispatchLatency   prometheus.Histogram
}

// New constructs a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		classifications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "recheckwatch",
			Name:      "classifications_total",
			Help:      "Number of bug ids attached to a job, labeled by job name.",
		}, []string{"job"}),
		readinessTimeouts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "recheckwatch",
			Name:      "readiness_timeouts_total",
			Help:      "Number of events for which the readiness gate timed out.",
		}),
		dispatchLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "recheckwatch",
			Name:      "reporter_dispatch_seconds",
			Help:      "Time spent posting a review comment and dispatching chat notifications.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	return m
}

// Noop returns a Metrics instance that records into an isolated registry
// never served over HTTP — used as the default when the caller doesn't
// care to wire one up.
func Noop() *Metrics {
	return New()
}

// ObserveClassification records that job produced bugCount matched bug ids.
func (m *Metrics) ObserveClassification(job string, bugCount int) {
	m.classifications.WithLabelValues(job).Add(float64(bugCount))
}

// IncReadinessTimeout records one readiness-gate timeout.
func (m *Metrics) IncReadinessTimeout() {
	m.readinessTimeouts.Inc()
}

// ObserveDispatchSeconds records the duration of one reporter dispatch.
func (m *Metrics) ObserveDispatchSeconds(seconds float64) {
	m.dispatchLatency.Observe(seconds)
}

// Handler returns the net/http handler serving this instance's metrics in
// the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
