package phase2

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports Phase 2 resolution outcomes as Prometheus counters,
// alongside the plain in-process Stats a Service already tracks. Unlike
// Stats, which resets on ResetStats() and only lives for this process,
// Metrics is meant to be scraped, so Service never resets it itself.
type Metrics struct {
	resolutions    *prometheus.CounterVec
	hallucinations prometheus.Counter
}

// NewMetrics builds a Metrics and registers it against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to expose it on the process-wide
// /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bunking",
				Subsystem: "phase2",
				Name:      "resolutions_total",
				Help:      "Total resolution outcomes by method",
			},
			[]string{"method", "outcome"},
		),
		hallucinations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "bunking",
				Subsystem: "phase2",
				Name:      "ai_hallucinations_total",
				Help:      "Total AI-provided person ids rejected as hallucinations",
			},
		),
	}
	reg.MustRegister(m.resolutions, m.hallucinations)
	return m
}

func (m *Metrics) observe(method string, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) observeHallucination() {
	if m == nil {
		return
	}
	m.hallucinations.Inc()
}
