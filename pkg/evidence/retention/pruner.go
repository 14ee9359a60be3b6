package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/evidence/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// MaxAge is how long evidence is kept. 0 keeps evidence forever.
	MaxAge time.Duration

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// ArchiveBeforeDelete exports records to ArchivePath before deleting them.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory for archived evidence.
	ArchivePath string

	// MaxRecords is the maximum number of records to keep. 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAge:        30 * 24 * time.Hour,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Pruner enforces retention on evidence records.
type Pruner struct {
	storage   evidence.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(storage evidence.Storage, config *Config, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		storage: storage,
		config:  config,
		logger:  logger.With("component", "evidence.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(config.PruneSchedule, p.scheduledPrune, p.logger)
	return p
}

// Prune applies the age rule, then the count rule, and returns the number
// of records deleted. Each rule reduces to an event-time cutoff: every
// record at or before it is archived (when configured) and deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	rules := []struct {
		name   string
		cutoff func(context.Context) (*time.Time, error)
	}{
		{"age", p.ageCutoff},
		{"count", p.countCutoff},
	}

	var total int64
	for _, rule := range rules {
		cutoff, err := rule.cutoff(ctx)
		if err == nil && cutoff != nil {
			var n int64
			n, err = p.sweep(ctx, rule.name, *cutoff)
			total += n
		}
		if err != nil {
			return total, evidence.NewRetentionError(p.config.MaxAge, fmt.Errorf("%s rule: %w", rule.name, err))
		}
	}

	level := slog.LevelDebug
	if total > 0 {
		level = slog.LevelInfo
	}
	p.logger.Log(ctx, level, "evidence pruning finished",
		"total_deleted", total,
		"max_age", p.config.MaxAge,
		"max_records", p.config.MaxRecords,
	)
	return total, nil
}

func (p *Pruner) ageCutoff(context.Context) (*time.Time, error) {
	if p.config.MaxAge <= 0 {
		return nil, nil
	}
	cutoff := p.now().Add(-p.config.MaxAge)
	return &cutoff, nil
}

// countCutoff is the event time of the newest record over MaxRecords.
// Records sharing that event time go too.
func (p *Pruner) countCutoff(ctx context.Context) (*time.Time, error) {
	if p.config.MaxRecords <= 0 {
		return nil, nil
	}
	count, err := p.storage.Count(ctx, &evidence.Query{})
	if err != nil || count <= p.config.MaxRecords {
		return nil, err
	}
	oldest, err := p.storage.Query(ctx, &evidence.Query{
		SortBy:    "event_time",
		SortOrder: "asc",
		Limit:     int(count - p.config.MaxRecords),
	})
	if err != nil || len(oldest) == 0 {
		return nil, err
	}
	return &oldest[len(oldest)-1].EventTime, nil
}

func (p *Pruner) sweep(ctx context.Context, reason string, cutoff time.Time) (int64, error) {
	q := &evidence.Query{EndTime: &cutoff}
	if p.config.ArchiveBeforeDelete {
		records, err := p.storage.Query(ctx, q)
		if err != nil {
			return 0, err
		}
		if err := p.archive(ctx, reason, records); err != nil {
			return 0, err
		}
	}
	deleted, err := p.storage.Delete(ctx, q)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("pruned records", "rule", reason, "deleted_count", deleted, "cutoff", cutoff)
	return deleted, nil
}

// archive writes records to a timestamped JSON file in ArchivePath.
func (p *Pruner) archive(ctx context.Context, reason string, records []*evidence.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("evidence-%s-%s.json", reason, p.now().UTC().Format("20060102-150405.000"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to export records to archive: %w", err)
	}
	p.logger.Info("evidence archived", "archive_file", path, "record_count", len(records))
	return nil
}

func (p *Pruner) scheduledPrune(ctx context.Context) {
	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	p.logger.Debug("scheduled pruning completed",
		"deleted_count", deleted,
		"max_age", p.config.MaxAge,
		"max_records", p.config.MaxRecords,
	)
}

// Start starts scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.Next()
}
