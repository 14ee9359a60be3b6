// Package health serves liveness, readiness and version endpoints for a
// running drivetwin process.
//
// Readiness aggregates named checks; StorageCheck and DropCheck cover the
// evidence store and recorder:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("evidence", health.StorageCheck(store))
//	checker.RegisterCheck("recorder", health.DropCheck(func() int64 { return rec.Stats().Dropped }, 0))
//	health.Register(mux, checker, health.VersionInfo{Version: version})
package health
