// Package metrics holds the Prometheus collectors of the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	ProviderCalls       *prometheus.CounterVec
	ProviderLatency     *prometheus.HistogramVec
	HTTPRequestDuration *prometheus.HistogramVec
	AttachmentBytes     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProviderCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mail_provider_calls_total",
				Help: "Provider operations by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome", "error_kind"},
		),
		ProviderLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mail_provider_call_duration_seconds",
				Help:    "Provider operation latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"provider", "operation"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"method", "path", "status"},
		),
		AttachmentBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mail_attachment_bytes_total",
				Help: "Bytes of attachment content returned to callers",
			},
			[]string{"provider"},
		),
	}
}

// ObserveProviderCall records one provider operation. errorKind is empty
// on success.
func (m *Metrics) ObserveProviderCall(provider, operation, errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if errorKind != "" {
		outcome = OutcomeError
	}
	m.ProviderCalls.WithLabelValues(provider, operation, outcome, errorKind).Inc()
	m.ProviderLatency.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// ObserveHTTPRequest records one HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// AddAttachmentBytes counts downloaded attachment bytes.
func (m *Metrics) AddAttachmentBytes(provider string, n int) {
	if m == nil {
		return
	}
	m.AttachmentBytes.WithLabelValues(provider).Add(float64(n))
}
