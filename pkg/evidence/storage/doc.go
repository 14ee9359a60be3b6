// Package storage provides evidence.Storage backends.
//
//   - SQLite: durable storage for episode evidence
//   - Memory: in-process storage for tests and dry runs
//
// # SQLite Backend
//
// Either SQL driver can back the store: the cgo driver
// github.com/mattn/go-sqlite3 (DriverMattn, the default) or the pure Go
// modernc.org/sqlite (DriverModernc) for CGO_ENABLED=0 builds. The schema
// lives in migrations/ and is applied with golang-migrate on open, so an
// older database is upgraded in place.
//
// Timestamps are stored as Unix nanoseconds to keep range filters and
// ordering identical across drivers.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:        "data/evidence.db",
//	    Driver:      storage.DriverModernc,
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	n, err := store.Count(ctx, &evidence.Query{EpisodeID: id, Status: "error"})
package storage
