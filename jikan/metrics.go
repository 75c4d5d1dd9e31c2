package jikan

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the catalog client.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	PacingWait      prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corsair_requests_total",
			Help: "Upstream HTTP attempts by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corsair_request_duration_seconds",
			Help:    "Latency of individual upstream HTTP attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corsair_retries_total",
			Help: "Retry attempts scheduled after a retryable failure.",
		},
		[]string{"operation"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corsair_errors_total",
			Help: "Errors surfaced to callers by type.",
		},
		[]string{"error_type"},
	)
	pacingWait := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corsair_pacing_wait_seconds",
			Help:    "Time spent waiting for the request spacing window.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	registry.MustRegister(requests, requestDuration, retries, errorsTotal, pacingWait)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		PacingWait:      pacingWait,
	}
}

// IncRequest counts one upstream attempt.
func (m *Metrics) IncRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveDuration records an HTTP attempt duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter for an operation.
func (m *Metrics) IncRetries(operation string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(operation).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObservePacing records a non-zero pacing wait.
func (m *Metrics) ObservePacing(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.PacingWait.Observe(d.Seconds())
}
