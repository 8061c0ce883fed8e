package billing_service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts webhook outcomes and sweep transitions. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	WebhookEvents     *prometheus.CounterVec
	WebhookUnresolved *prometheus.CounterVec
	SweepTransitions  *prometheus.CounterVec
	SweepRuns         *prometheus.CounterVec
}

// NewMetrics creates the billing counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing",
				Name:      "webhook_events_total",
				Help:      "Stripe webhook deliveries by event type and outcome",
			},
			[]string{"type", "outcome"},
		),
		WebhookUnresolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing",
				Name:      "webhook_unresolved_total",
				Help:      "Webhook events acknowledged without a matching local row",
			},
			[]string{"type"},
		),
		SweepTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing",
				Name:      "sweep_transitions_total",
				Help:      "Subscriptions moved by the lifecycle sweep",
			},
			[]string{"step"},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing",
				Name:      "sweep_runs_total",
				Help:      "Lifecycle sweep runs by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.WebhookEvents, m.WebhookUnresolved, m.SweepTransitions, m.SweepRuns)
	}
	return m
}

func (m *Metrics) webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) unresolved(eventType string) {
	if m == nil {
		return
	}
	m.WebhookUnresolved.WithLabelValues(eventType).Inc()
}

func (m *Metrics) sweep(step string, moved int64) {
	if m == nil || moved == 0 {
		return
	}
	m.SweepTransitions.WithLabelValues(step).Add(float64(moved))
}

func (m *Metrics) sweepRun(result string) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(result).Inc()
}
