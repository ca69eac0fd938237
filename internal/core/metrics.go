package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics records command and persistence outcomes as Prometheus series.
type PrometheusMetrics struct {
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

// NewPrometheusMetrics registers the tfdcore collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tfdcore",
			Name:      "operation_duration_seconds",
			Help:      "Latency of service commands and persistence jobs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tfdcore",
			Name:      "operation_results_total",
			Help:      "Service commands and persistence jobs by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{m.duration, m.results} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
	m.results.WithLabelValues(operation, status).Inc()
}

// Results exposes the outcome counter for tests and dashboards.
func (m *PrometheusMetrics) Results() *prometheus.CounterVec { return m.results }
