package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/drivetwin/pkg/config"
)

// PolicyMetrics tracks the policy program lifecycle.
//
// Metrics:
//   - drivetwin_policy_events_total: loads, failures, exhaustion and say
//     events by program
type PolicyMetrics struct {
	eventsTotal *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers the policy metrics.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_events_total",
				Help:      "Total number of policy events by program and event",
			},
			[]string{"program", "event"},
		),
	}

	registry.MustRegister(pm.eventsTotal)
	return pm
}

// RecordEvent counts a policy event.
func (pm *PolicyMetrics) RecordEvent(program, event string) {
	pm.eventsTotal.WithLabelValues(program, event).Inc()
}
