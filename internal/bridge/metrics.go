package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
)

// Request outcomes recorded by Metrics.
const (
	OutcomeOK           = "ok"
	OutcomeServiceError = "service_error"
	OutcomeChannelError = "channel_error"
	OutcomeCancelled    = "cancelled"
)

// Metrics instruments a Correlator.
type Metrics struct {
	requests *prometheus.CounterVec
	inflight prometheus.Gauge
	latency  *prometheus.HistogramVec
}

// NewMetrics creates and registers bridge metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dobby",
			Subsystem: "bridge",
			Name:      "requests_total",
			Help:      "Requests sent to the execution service by tag and outcome.",
		}, []string{"tag", "outcome"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dobby",
			Subsystem: "bridge",
			Name:      "requests_inflight",
			Help:      "Requests awaiting a response.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dobby",
			Subsystem: "bridge",
			Name:      "request_duration_seconds",
			Help:      "Time from send to response.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"tag"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.inflight, m.latency)
	}
	return m
}

func (m *Metrics) begin() time.Time {
	if m == nil {
		return time.Time{}
	}
	m.inflight.Inc()
	return time.Now()
}

func (m *Metrics) end(tag protocol.Tag, start time.Time, outcome string) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.requests.WithLabelValues(string(tag), outcome).Inc()
	m.latency.WithLabelValues(string(tag)).Observe(time.Since(start).Seconds())
}
