package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	IntentsTotal     *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	ServiceFailures  *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	RejectedInputs   *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "jarvis"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IntentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Utterances routed, by intent kind and matching rule",
		}, []string{"kind", "rule"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent producing a response",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
		ServiceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_failures_total",
			Help:      "External service failures, by service and error kind",
		}, []string{"service", "kind"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Dialogue state changes",
		}, []string{"from", "to"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "1 while a session is active",
		}),
		RejectedInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_inputs_total",
			Help:      "Inputs refused before reaching the dialogue",
		}, []string{"input"}),
	}

	m.registry.MustRegister(
		m.IntentsTotal,
		m.HandlerDuration,
		m.ServiceFailures,
		m.TransitionsTotal,
		m.SessionsActive,
		m.RejectedInputs,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordIntent(kind, rule string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(kind, rule).Inc()
}

func (m *Metrics) RecordHandled(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.HandlerDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) RecordFailure(service, kind string) {
	if m == nil {
		return
	}
	m.ServiceFailures.WithLabelValues(service, kind).Inc()
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionsActive.Set(1)
	} else {
		m.SessionsActive.Set(0)
	}
}

func (m *Metrics) RecordRejected(input string) {
	if m == nil {
		return
	}
	m.RejectedInputs.WithLabelValues(input).Inc()
}
