package git

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"

	"mercator-hq/drivetwin/pkg/policy/manager"
)

// ReloadFunc loads and checks the policy file after the clone changed. An
// error rejects the commit.
type ReloadFunc func(ctx context.Context) error

// WatcherConfig controls polling.
type WatcherConfig struct {
	// PollInterval is the time between pulls.
	PollInterval time.Duration

	// Debounce delays the reload after a change; later changes within the
	// interval replace it. Zero reloads synchronously.
	Debounce time.Duration
}

// WatcherStats tracks watcher counters.
type WatcherStats struct {
	Polls             int64
	SuccessfulReloads int64
	FailedReloads     int64
	SkippedChanges    int64
	LastReloadTime    time.Time
}

// Watcher polls a repository and reloads the policy when a commit changes
// the policy file. A rejected commit is rolled back and not reloaded again
// until the remote moves past it.
type Watcher struct {
	repo     *Repository
	file     string
	config   WatcherConfig
	reload   ReloadFunc
	logger   *slog.Logger
	debounce *manager.Debouncer

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastSHA  string
	rejected string
	lastErr  error
	stats    WatcherStats
}

// NewWatcher creates a watcher for the repository-relative policy file.
func NewWatcher(repo *Repository, file string, config *WatcherConfig, reload ReloadFunc, logger *slog.Logger) *Watcher {
	if config == nil {
		config = &WatcherConfig{}
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		repo:   repo,
		file:   path.Clean(filepath.ToSlash(file)),
		config: *config,
		reload: reload,
		logger: logger.With("component", "policy-git"),
	}
	if config.Debounce > 0 {
		w.debounce = manager.NewDebouncer(config.Debounce)
	}
	return w
}

// Start records the current commit as last good and starts polling in the
// background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	commit, err := w.repo.CurrentCommit()
	if err != nil {
		return fmt.Errorf("failed to get initial commit: %w", err)
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.lastSHA = commit.SHA
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("watching policy repository",
		"file", w.file,
		"poll_interval", w.config.PollInterval,
		"commit", commit.Short(),
	)
	go w.pollLoop(ctx)
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	<-done
	return nil
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.Check(ctx); err != nil {
				w.logger.Error("policy repository check failed", "error", err)
			}
		}
	}
}

// Check pulls once and reloads if the policy file changed.
func (w *Watcher) Check(ctx context.Context) error {
	w.mu.Lock()
	w.stats.Polls++
	w.mu.Unlock()

	result, err := w.repo.Pull(ctx)
	w.setErr(err)
	if err != nil {
		return err
	}
	if !result.HadChanges {
		return nil
	}

	w.mu.RLock()
	lastSHA, rejected := w.lastSHA, w.rejected
	w.mu.RUnlock()

	if result.ToSHA == rejected {
		// Still the rejected commit; keep the last good one checked out.
		return w.repo.Rollback(ctx, lastSHA)
	}

	if !w.touchesPolicy(result.ChangedFiles) {
		w.mu.Lock()
		w.stats.SkippedChanges++
		w.lastSHA = result.ToSHA
		w.mu.Unlock()
		w.logger.Debug("commit does not touch the policy file",
			"to", shortSHA(result.ToSHA),
			"changed_files", result.ChangedFiles,
		)
		return nil
	}

	w.logger.Info("policy file changed",
		"from", shortSHA(result.FromSHA),
		"to", shortSHA(result.ToSHA),
	)
	if w.debounce == nil {
		return w.apply(ctx, result.ToSHA)
	}
	w.debounce.Trigger(func() {
		if err := w.apply(ctx, result.ToSHA); err != nil {
			w.logger.Error("policy reload failed", "error", err)
		}
	})
	return nil
}

func (w *Watcher) touchesPolicy(files []string) bool {
	for _, f := range files {
		if path.Clean(f) == w.file {
			return true
		}
	}
	return false
}

// apply reloads at sha and rolls back to the last good commit on failure.
func (w *Watcher) apply(ctx context.Context, sha string) error {
	err := w.reload(ctx)

	w.mu.Lock()
	w.stats.LastReloadTime = time.Now()
	lastSHA := w.lastSHA
	if err == nil {
		w.stats.SuccessfulReloads++
		w.lastSHA = sha
		w.rejected = ""
		w.mu.Unlock()
		w.logger.Info("policy reloaded from repository", "commit", shortSHA(sha))
		return nil
	}
	w.stats.FailedReloads++
	w.rejected = sha
	w.mu.Unlock()

	w.logger.Warn("policy rejected, rolling back",
		"error", err,
		"commit", shortSHA(sha),
		"rollback_to", shortSHA(lastSHA),
	)
	if rbErr := w.repo.Rollback(ctx, lastSHA); rbErr != nil {
		return fmt.Errorf("policy rejected and rollback failed: %w (rollback: %v)", err, rbErr)
	}
	return fmt.Errorf("policy at %s rejected: %w", shortSHA(sha), err)
}

func (w *Watcher) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
}

// LastError returns the error of the most recent pull, nil if it succeeded.
func (w *Watcher) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// LastCommit returns the SHA of the last good commit.
func (w *Watcher) LastCommit() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSHA
}

// Stats returns a copy of the watcher counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}
