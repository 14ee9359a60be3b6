// Package telemetry groups the observability packages of the digital twin.
//
// # Components
//
//   - logging: structured slog logging with episode context and value sanitizing
//   - metrics: Prometheus collectors fed by twin observer events
//   - health: liveness, readiness and version endpoints backed by named checks
//
// # Usage
//
//	logger, err := logging.Setup(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//		return err
//	}
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tw.AddObserver(collector.Observer())
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("evidence_storage", health.StorageCheck(store))
//	health.Register(mux, checker, health.VersionInfo{Version: "v0.1.0"})
//
// Episode fields attached with logging.WithEpisode are added to every record
// logged with a context, so per-tick logs of concurrent episodes can be told
// apart.
package telemetry
