// Package metrics exposes SMB1 client request metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smolder"

// ClientMetrics is the Prometheus implementation of smb1.Metrics.
// A nil *ClientMetrics is valid and records nothing.
type ClientMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewClientMetrics registers the client collectors on reg.
//
// Returns nil if reg is nil.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		return nil
	}

	return &ClientMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of SMB1 requests by command and outcome",
			},
			[]string{"command", "outcome"}, // "ok", "remote_error", "protocol_error", "io_error", "timeout", "canceled"
		),
		latency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from sending an SMB1 request to receiving its response",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"command"},
		),
		inFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of SMB1 requests awaiting a response",
			},
		),
	}
}

// RequestStarted records a request going out.
func (m *ClientMetrics) RequestStarted(command string) {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// ObserveRequest records a finished request.
func (m *ClientMetrics) ObserveRequest(command, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requests.WithLabelValues(command, outcome).Inc()
	m.latency.WithLabelValues(command).Observe(d.Seconds())
}
