package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/drivetwin/pkg/config"
)

// EpisodeMetrics tracks finished episodes.
type EpisodeMetrics struct {
	episodesTotal   *prometheus.CounterVec
	episodeTicks    prometheus.Histogram
	episodeDistance prometheus.Histogram
}

// NewEpisodeMetrics creates and registers the episode metrics.
func NewEpisodeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EpisodeMetrics {
	em := &EpisodeMetrics{
		episodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "episodes_total",
				Help:      "Total number of finished episodes by termination",
			},
			[]string{"termination"},
		),

		episodeTicks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "episode_ticks",
				Help:      "Number of ticks per episode",
				Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
			},
		),

		episodeDistance: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "episode_distance_meters",
				Help:      "Distance covered by the ego vehicle per episode",
				Buckets:   prometheus.LinearBuckets(0, 100, 11),
			},
		),
	}

	registry.MustRegister(em.episodesTotal, em.episodeTicks, em.episodeDistance)
	return em
}

// RecordEpisode records a finished episode.
func (em *EpisodeMetrics) RecordEpisode(termination string, ticks uint64, distance float64) {
	em.episodesTotal.WithLabelValues(termination).Inc()
	em.episodeTicks.Observe(float64(ticks))
	em.episodeDistance.Observe(distance)
}
