package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the action framework
type Metrics struct {
	registry *prometheus.Registry

	CallsTotal           *prometheus.CounterVec
	CallDuration         *prometheus.HistogramVec
	PolicyDenialsTotal   *prometheus.CounterVec
	QuotaRejectionsTotal *prometheus.CounterVec
	PendingConfirmations prometheus.Gauge
}

// NewMetrics creates and registers all metrics on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planora_tool_calls_total",
			Help: "Total tool calls by tool and final status",
		}, []string{"tool", "status"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planora_tool_call_duration_seconds",
			Help:    "Tool effect duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		PolicyDenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planora_policy_denials_total",
			Help: "Tool calls denied by policy",
		}, []string{"tool"}),
		QuotaRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planora_quota_rejections_total",
			Help: "Quota reservations rejected by kind",
		}, []string{"kind"}),
		PendingConfirmations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planora_pending_confirmations",
			Help: "Calls currently parked awaiting confirmation",
		}),
	}

	registry.MustRegister(
		m.CallsTotal,
		m.CallDuration,
		m.PolicyDenialsTotal,
		m.QuotaRejectionsTotal,
		m.PendingConfirmations,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall implements executor.MetricsRecorder
func (m *Metrics) ObserveCall(tool, status string, duration time.Duration) {
	m.CallsTotal.WithLabelValues(tool, status).Inc()
	m.CallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveDenial implements executor.MetricsRecorder
func (m *Metrics) ObserveDenial(tool string) {
	m.PolicyDenialsTotal.WithLabelValues(tool).Inc()
}

// ObserveQuotaRejection counts a rejected quota reservation
func (m *Metrics) ObserveQuotaRejection(kind string) {
	m.QuotaRejectionsTotal.WithLabelValues(kind).Inc()
}

// ObservePending implements executor.MetricsRecorder
func (m *Metrics) ObservePending(delta int) {
	m.PendingConfirmations.Add(float64(delta))
}
