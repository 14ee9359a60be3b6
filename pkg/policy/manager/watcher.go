package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval collapses the write bursts of a single save.
const DefaultDebounceInterval = 100 * time.Millisecond

// policyWatcher reports changes to one policy file. The parent directory is
// watched because a save by rename replaces the file the watch was set on.
type policyWatcher struct {
	fsw      *fsnotify.Watcher
	file     string
	debounce *Debouncer
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func newPolicyWatcher(path string, interval time.Duration, logger *slog.Logger) (*policyWatcher, error) {
	file, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("failed to watch policy file: %w", err)
	}
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(file)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(file), err)
	}
	return &policyWatcher{
		fsw:      fsw,
		file:     file,
		debounce: NewDebouncer(interval),
		logger:   logger,
	}, nil
}

// relevant reports whether ev may have changed the policy file's content.
func (w *policyWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.file {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}

// run calls reload once per burst of changes until ctx ends or the watcher
// is closed.
func (w *policyWatcher) run(ctx context.Context, reload func()) error {
	defer w.close()
	w.logger.Info("watching policy file", "path", w.file)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("policy file event", "op", ev.Op.String())
			w.debounce.Trigger(reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("policy file watcher error", "error", err)
		}
	}
}

func (w *policyWatcher) close() error {
	w.closeOnce.Do(func() {
		w.debounce.Stop()
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}

// Debouncer runs the most recently triggered callback once no trigger has
// arrived for the interval.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger (re)starts the quiet interval with fn as the callback. It does
// nothing after Stop.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		fire := !d.stopped && gen == d.gen
		d.mu.Unlock()
		if fire {
			fn()
		}
	})
}

// Stop drops the pending callback. It is safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
