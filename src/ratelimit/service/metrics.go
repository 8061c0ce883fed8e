package ratelimit_service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Decisions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ratelimit",
				Name:      "decisions_total",
				Help:      "Admission decisions by action and result",
			},
			[]string{"action", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Decisions)
	}
	return m
}

func (m *Metrics) Observe(action string, d Decision) {
	if m == nil {
		return
	}
	result := "allowed"
	if !d.Allowed {
		result = "rejected"
	} else if d.ResetAt == nil {
		result = "fail_open"
	}
	m.Decisions.WithLabelValues(action, result).Inc()
}
