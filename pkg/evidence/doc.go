// Package evidence records what a twin did during an episode. Every twin
// event (ticks, policy loads and failures, lane changes, stop recoveries,
// say messages) becomes an immutable Record that can be queried, exported
// and pruned after the run.
//
// # Layers
//
//  1. recorder turns twin events into records and writes them asynchronously
//  2. storage persists records (SQLite or memory)
//  3. query validates filters; export writes JSON or CSV
//  4. retention prunes old records on a cron schedule
//
// # Recording Flow
//
//	twin.Act -> Observer.OnEvent -> Recorder (buffered channel)
//	     -> content hash -> Storage.Store
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:    "data/evidence.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//
//	tw.AddObserver(rec.Observer(episodeID, scenario.Name))
//
//	records, err := store.Query(ctx, &evidence.Query{
//	    EpisodeID: episodeID,
//	    Kinds:     []string{"lane_change"},
//	})
package evidence
