package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/drivetwin/pkg/policy/engine"
)

// ErrNoWatchPath is returned by Watch when no file path is configured.
var ErrNoWatchPath = errors.New("no policy path to watch")

// Config contains manager configuration.
type Config struct {
	// WatchPath is the policy file watched for changes. Empty disables Watch.
	WatchPath string

	// DebounceInterval collapses bursts of file events (default: 100ms)
	DebounceInterval time.Duration

	// LoadTimeout bounds a single source load (default: 5s)
	LoadTimeout time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: DefaultDebounceInterval,
		LoadTimeout:      5 * time.Second,
	}
}

// ReloadEvent describes one completed reload attempt.
type ReloadEvent struct {
	Program   string
	Version   int
	Timestamp time.Time
	Error     error
}

// Manager hands programs from a source to the tick loop.
type Manager struct {
	source engine.Source
	config *Config
	logger *slog.Logger

	mu       sync.Mutex
	pending  *engine.Program
	current  string
	version  int
	lastLoad time.Time
	lastErr  error

	events chan ReloadEvent

	watchMu sync.Mutex
	watcher *policyWatcher
}

// New creates a manager for src.
func New(src engine.Source, config *Config, logger *slog.Logger) (*Manager, error) {
	if src == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = DefaultConfig().LoadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source: src,
		config: config,
		logger: logger.With("component", "policy-manager"),
		events: make(chan ReloadEvent, 16),
	}, nil
}

// Load reads the source and parks the program for the next Pending call.
// On error the previously pending program, if any, is kept.
func (m *Manager) Load(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, m.config.LoadTimeout)
	defer cancel()

	start := time.Now()
	program, err := m.source.Load(loadCtx)

	m.mu.Lock()
	m.lastErr = err
	if err == nil {
		m.version++
		m.pending = &program
		m.current = program.Name
		m.lastLoad = time.Now()
	}
	event := ReloadEvent{Program: program.Name, Version: m.version, Timestamp: time.Now(), Error: err}
	m.mu.Unlock()

	m.publish(event)
	if err != nil {
		m.logger.Error("failed to load policy", "error", err)
		return err
	}
	m.logger.Info("policy loaded",
		"program", program.Name,
		"version", event.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Pending returns the program loaded since the last call, if any.
func (m *Manager) Pending() (engine.Program, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return engine.Program{}, false
	}
	p := *m.pending
	m.pending = nil
	return p, true
}

// Version returns the number of successful loads.
func (m *Manager) Version() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// LastError returns the error of the most recent load, nil if it succeeded.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Events returns reload attempts. Events are dropped when nobody reads them.
func (m *Manager) Events() <-chan ReloadEvent {
	return m.events
}

func (m *Manager) publish(event ReloadEvent) {
	select {
	case m.events <- event:
	default:
	}
}

// Watch reloads the program whenever the watched file changes. It blocks
// until ctx is cancelled or Close is called.
func (m *Manager) Watch(ctx context.Context) error {
	if m.config.WatchPath == "" {
		return ErrNoWatchPath
	}
	w, err := newPolicyWatcher(m.config.WatchPath, m.config.DebounceInterval, m.logger)
	if err != nil {
		return err
	}

	m.watchMu.Lock()
	if m.watcher != nil {
		m.watchMu.Unlock()
		_ = w.close()
		return fmt.Errorf("already watching %q", m.config.WatchPath)
	}
	m.watcher = w
	m.watchMu.Unlock()

	// Load logs its own failures and keeps the last good program.
	return w.run(ctx, func() { _ = m.Load(ctx) })
}

// Close stops watching.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	w := m.watcher
	m.watcher = nil
	m.watchMu.Unlock()

	if w == nil {
		return nil
	}
	return w.close()
}
