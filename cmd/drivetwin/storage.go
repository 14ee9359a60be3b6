package main

import (
	"fmt"
	"os"
	"path/filepath"

	"mercator-hq/drivetwin/pkg/config"
	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/evidence/storage"
)

// evidenceStore is the interface both storage backends satisfy.
type evidenceStore interface {
	evidence.Storage
	evidence.EpisodeStorage
}

// openStorage opens the configured evidence backend. backend overrides the
// configured one when set.
func openStorage(ec config.EvidenceConfig, backend string) (evidenceStore, error) {
	if backend == "" {
		backend = ec.Backend
	}
	switch backend {
	case "sqlite":
		if ec.SQLite.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(ec.SQLite.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create evidence directory: %w", err)
			}
		}
		store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         ec.SQLite.Path,
			Driver:       ec.SQLite.Driver,
			MaxOpenConns: ec.SQLite.MaxOpenConns,
			MaxIdleConns: ec.SQLite.MaxIdleConns,
			WALMode:      ec.SQLite.WALMode,
			BusyTimeout:  ec.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		return store, nil
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported evidence backend: %s (supported: sqlite, memory)", backend)
	}
}
