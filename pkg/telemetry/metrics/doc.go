// Package metrics exposes drivetwin's Prometheus metrics.
//
// # Metrics
//
//   - drivetwin_ticks_total{source}: ticks by command source
//   - drivetwin_tick_duration_seconds{source}: tick decision latency
//   - drivetwin_maneuvers_total{maneuver}: lane_change, route_planned, stop_recovered
//   - drivetwin_policy_events_total{program,event}: policy lifecycle events
//   - drivetwin_episodes_total{termination}: finished episodes
//   - drivetwin_episode_ticks, drivetwin_episode_distance_meters: episode size
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tw.AddObserver(collector.Observer())
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", collector.Handler())
//
//	res, err := runner.Run(ctx)
//	collector.RecordEpisode(string(res.Termination), res.Ticks, res.Distance)
//
// Program names come from policy authors; past 256 distinct names the
// program label collapses to "other".
package metrics
