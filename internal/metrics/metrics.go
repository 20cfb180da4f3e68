// Package metrics exposes Prometheus metrics for the outreach server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Send modes for the emails_sent/emails_failed counters.
const (
	ModeReview    = "review"
	ModeScheduled = "scheduled"
	ModeDirect    = "direct"
)

// Metrics holds all Prometheus metrics for the outreach server
type Metrics struct {
	// Email counters
	EmailsSentTotal    *prometheus.CounterVec
	EmailsFailedTotal  *prometheus.CounterVec
	EmailsSkippedTotal prometheus.Counter

	// Variation counters
	VariationsGeneratedTotal *prometheus.CounterVec

	// Dispatch gauges
	ScheduledPending prometheus.Gauge
	ReviewRemaining  prometheus.Gauge

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_emails_sent_total",
				Help: "Total number of submitted application emails",
			},
			[]string{"mode"},
		),
		EmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_emails_failed_total",
				Help: "Total number of failed email submissions",
			},
			[]string{"mode"},
		),
		EmailsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_emails_skipped_total",
				Help: "Total number of recipients skipped during review",
			},
		),

		VariationsGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_variations_generated_total",
				Help: "Total number of message variations produced",
			},
			[]string{"source"},
		),

		ScheduledPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "outreach_scheduled_pending",
				Help: "Number of scheduled sends not yet fired",
			},
		),
		ReviewRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "outreach_review_remaining",
				Help: "Number of previews left in the active review session",
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outreach_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		registry: reg,
	}

	// Register all metrics
	reg.MustRegister(
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.EmailsSkippedTotal,
		m.VariationsGeneratedTotal,
		m.ScheduledPending,
		m.ReviewRemaining,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncEmailsSent increments the sent email counter
func IncEmailsSent(mode string) {
	m := Global()
	if m != nil {
		m.EmailsSentTotal.WithLabelValues(mode).Inc()
	}
}

// IncEmailsFailed increments the failed email counter
func IncEmailsFailed(mode string) {
	m := Global()
	if m != nil {
		m.EmailsFailedTotal.WithLabelValues(mode).Inc()
	}
}

// IncEmailsSkipped increments the skipped recipient counter
func IncEmailsSkipped() {
	m := Global()
	if m != nil {
		m.EmailsSkippedTotal.Inc()
	}
}

// AddVariationsGenerated adds to the variation counter for a source
func AddVariationsGenerated(source string, n int) {
	m := Global()
	if m != nil {
		m.VariationsGeneratedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// SetScheduledPending sets the pending scheduled sends gauge
func SetScheduledPending(n int) {
	m := Global()
	if m != nil {
		m.ScheduledPending.Set(float64(n))
	}
}

// SetReviewRemaining sets the review remaining gauge
func SetReviewRemaining(n int) {
	m := Global()
	if m != nil {
		m.ReviewRemaining.Set(float64(n))
	}
}

// IncAPIErrors increments API error counter
func IncAPIErrors(errorType string) {
	m := Global()
	if m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
