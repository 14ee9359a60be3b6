package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/drivetwin/pkg/config"
	"mercator-hq/drivetwin/pkg/twin"
)

// maxPrograms bounds the number of distinct program labels. Programs are
// named by policy authors, so the label set is not under our control.
const maxPrograms = 256

// otherProgram replaces program names past the cardinality limit.
const otherProgram = "other"

// Collector owns the drivetwin Prometheus metrics. It is fed by a twin
// observer and by the episode runner.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	twinMetrics    *TwinMetrics
	policyMetrics  *PolicyMetrics
	episodeMetrics *EpisodeMetrics

	programs *CardinalityLimiter
}

// NewCollector creates a collector registered with registry. If registry is
// nil a fresh one is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tw.AddObserver(collector.Observer())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "drivetwin"
	}
	if len(cfg.TickDurationBuckets) == 0 {
		// 10µs to ~160ms; a tick runs one policy step and the controllers
		cfg.TickDurationBuckets = prometheus.ExponentialBuckets(0.00001, 2, 15)
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		twinMetrics:    NewTwinMetrics(cfg, registry),
		policyMetrics:  NewPolicyMetrics(cfg, registry),
		episodeMetrics: NewEpisodeMetrics(cfg, registry),
		programs:       NewCardinalityLimiter(maxPrograms),
	}
}

// RecordTick records one twin tick and the source of its command.
func (c *Collector) RecordTick(source string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if source == "" {
		source = "none"
	}
	c.twinMetrics.RecordTick(source, duration)
}

// RecordManeuver counts a lane change, route plan or stop recovery.
func (c *Collector) RecordManeuver(maneuver string) {
	if !c.config.Enabled {
		return
	}
	c.twinMetrics.RecordManeuver(maneuver)
}

// RecordPolicyEvent counts a policy lifecycle event for program.
func (c *Collector) RecordPolicyEvent(program, event string) {
	if !c.config.Enabled {
		return
	}
	if program == "" {
		program = "none"
	}
	if !c.programs.Allow(program) {
		program = otherProgram
	}
	c.policyMetrics.RecordEvent(program, event)
}

// RecordEpisode records a finished episode.
func (c *Collector) RecordEpisode(termination string, ticks uint64, distance float64) {
	if !c.config.Enabled {
		return
	}
	c.episodeMetrics.RecordEpisode(termination, ticks, distance)
}

// Observer returns a twin observer feeding the collector.
func (c *Collector) Observer() twin.Observer {
	return twin.ObserverFunc(func(e twin.Event) {
		switch e.Kind {
		case twin.EventTick:
			c.RecordTick(string(e.Source), e.Duration)
		case twin.EventLaneChange, twin.EventRoutePlanned, twin.EventStopRecovered:
			c.RecordManeuver(string(e.Kind))
		default:
			c.RecordPolicyEvent(e.Program, string(e.Kind))
		}
	})
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of unique values a label takes.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter accepting up to maxCardinality
// values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already known or still fits under the
// limit, remembering it in the latter case.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
