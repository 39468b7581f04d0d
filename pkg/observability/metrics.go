package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by the executor hooks.
type Metrics struct {
	Steps    *prometheus.CounterVec
	Affected *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Plans    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "witmorph_steps_total",
				Help: "Total number of plan steps processed",
			},
			[]string{"kind", "phase", "outcome"},
		),
		Affected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "witmorph_records_affected_total",
				Help: "Records changed by plan steps",
			},
			[]string{"kind"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "witmorph_step_duration_seconds",
				Help:    "Duration of plan step execution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		Plans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "witmorph_plans_total",
				Help: "Plans computed, by whether comparison errors were reported",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Steps, m.Affected, m.Duration, m.Plans)
	}
	return m
}

// ObservePlan counts a computed plan.
func (m *Metrics) ObservePlan(hasErrors bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if hasErrors {
		outcome = "partial"
	}
	m.Plans.WithLabelValues(outcome).Inc()
}
