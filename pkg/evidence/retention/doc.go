// Package retention prunes evidence records by age and by count.
//
// A Pruner deletes records whose event time is older than MaxAge, then the
// oldest records beyond MaxRecords. With ArchiveBeforeDelete the doomed
// records are first exported as JSON into ArchivePath. Pruning runs on
// demand (Prune) or on a cron schedule (Start):
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    MaxAge:        30 * 24 * time.Hour,
//	    PruneSchedule: "0 3 * * *",
//	}, logger)
//	if err := pruner.Start(ctx); err != nil {
//	    return err
//	}
//	defer pruner.Stop()
package retention
