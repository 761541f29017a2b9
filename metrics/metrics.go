// Package metrics wires the module's observable behavior into
// Prometheus, following the teacher's promauto/CounterVec/HistogramVec
// idiom (c.f. cmd/server/signal_metrics.go's SignalPrometheusMetrics).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/auroralink/wrapper-core/resilience"
)

const (
	namespace = "auroracore"
)

// Metrics is this module's Prometheus instrumentation surface. It
// implements resilience.Metrics so resilience retry loops (the
// terminal dial retry) report through it without resilience importing
// prometheus directly.
type Metrics struct {
	retryAttempts       *prometheus.CounterVec
	retryAttemptSeconds *prometheus.HistogramVec
	retryBackoffSeconds *prometheus.HistogramVec

	failoverTotal          *prometheus.CounterVec
	topologyPublishedTotal *prometheus.CounterVec
	monitorMode            *prometheus.GaugeVec
	limitlessRouterCount   *prometheus.GaugeVec
}

// New registers this module's metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across test runs in the same process.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		retryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retry_attempts_total",
			Help:      "Total retry attempts by operation and outcome (success|failure).",
		}, []string{"operation", "outcome"}),
		retryAttemptSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retry_attempt_duration_seconds",
			Help:      "Duration of a single retry attempt, in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),
		retryBackoffSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retry_backoff_seconds",
			Help:      "Delay waited before the next retry attempt, in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		failoverTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "failover",
			Name:      "total",
			Help:      "Total failover attempts by mode and outcome (success|exhausted).",
		}, []string{"mode", "outcome"}),
		topologyPublishedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "topology_published_total",
			Help:      "Total topologies published by cluster id.",
		}, []string{"cluster_id"}),
		monitorMode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "mode",
			Help:      "Current CTM mode by cluster id (0=regular, 1=panic).",
		}, []string{"cluster_id"}),
		limitlessRouterCount: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "limitless",
			Name:      "router_count",
			Help:      "Current size of the limitless router list by service key.",
		}, []string{"service_key"}),
	}
}

var _ resilience.Metrics = (*Metrics)(nil)

// RecordAttempt implements resilience.Metrics.
func (m *Metrics) RecordAttempt(operation, outcome string, durationSeconds float64) {
	m.retryAttempts.WithLabelValues(operation, outcome).Inc()
	m.retryAttemptSeconds.WithLabelValues(operation, outcome).Observe(durationSeconds)
}

// RecordBackoff implements resilience.Metrics.
func (m *Metrics) RecordBackoff(operation string, delaySeconds float64) {
	m.retryBackoffSeconds.WithLabelValues(operation).Observe(delaySeconds)
}

// RecordFailover records one completed failover attempt.
func (m *Metrics) RecordFailover(mode string, succeeded bool) {
	outcome := "exhausted"
	if succeeded {
		outcome = "success"
	}
	m.failoverTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordTopologyPublished records one CTM publish for clusterID and
// sets its current mode gauge (0=regular, 1=panic).
func (m *Metrics) RecordTopologyPublished(clusterID string, panicMode bool) {
	m.topologyPublishedTotal.WithLabelValues(clusterID).Inc()
	v := 0.0
	if panicMode {
		v = 1.0
	}
	m.monitorMode.WithLabelValues(clusterID).Set(v)
}

// SetLimitlessRouterCount records the current router-list size for
// serviceKey.
func (m *Metrics) SetLimitlessRouterCount(serviceKey string, count int) {
	m.limitlessRouterCount.WithLabelValues(serviceKey).Set(float64(count))
}
