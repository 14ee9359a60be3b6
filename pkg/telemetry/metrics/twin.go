package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/drivetwin/pkg/config"
)

// TwinMetrics tracks the tick loop.
//
// Metrics:
//   - drivetwin_ticks_total: ticks by command source (policy, autopilot)
//   - drivetwin_tick_duration_seconds: time spent deciding a tick's command
//   - drivetwin_maneuvers_total: lane changes, route plans and stop recoveries
type TwinMetrics struct {
	ticksTotal     *prometheus.CounterVec
	tickDuration   *prometheus.HistogramVec
	maneuversTotal *prometheus.CounterVec
}

// NewTwinMetrics creates and registers the twin metrics.
func NewTwinMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TwinMetrics {
	tm := &TwinMetrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ticks_total",
				Help:      "Total number of twin ticks by command source",
			},
			[]string{"source"},
		),

		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tick_duration_seconds",
				Help:      "Duration of a twin tick in seconds",
				Buckets:   cfg.TickDurationBuckets,
			},
			[]string{"source"},
		),

		maneuversTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "maneuvers_total",
				Help:      "Total number of maneuvers started by the twin",
			},
			[]string{"maneuver"},
		),
	}

	registry.MustRegister(tm.ticksTotal, tm.tickDuration, tm.maneuversTotal)
	return tm
}

// RecordTick records a tick.
func (tm *TwinMetrics) RecordTick(source string, duration time.Duration) {
	tm.ticksTotal.WithLabelValues(source).Inc()
	tm.tickDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordManeuver counts a maneuver.
func (tm *TwinMetrics) RecordManeuver(maneuver string) {
	tm.maneuversTotal.WithLabelValues(maneuver).Inc()
}
