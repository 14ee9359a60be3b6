package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/twin"
)

// Config contains configuration for the evidence recorder.
type Config struct {
	// Enabled enables evidence recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds both enqueueing and each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// RecordTicks records one record per tick. Ticks dominate the volume
	// of an episode.
	// Default: true
	RecordTicks bool

	// MaxFieldLength is the maximum length for text fields before truncation.
	// Default: 500
	MaxFieldLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		AsyncBuffer:    1000,
		WriteTimeout:   5 * time.Second,
		RecordTicks:    true,
		MaxFieldLength: 500,
	}
}

// Stats counts what the recorder did with the records it was given.
type Stats struct {
	Recorded int64
	Dropped  int64
	Failed   int64
}

// Recorder writes evidence records asynchronously so the tick loop never
// waits on storage.
type Recorder struct {
	storage    evidence.Storage
	config     *Config
	recordChan chan *evidence.Record
	wg         sync.WaitGroup
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool

	// chainMu is held from numbering a record until it is enqueued, so
	// chains only advance over records that reach the worker.
	chainMu sync.Mutex
	chains  map[string]chainLink

	recorded atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// NewRecorder creates a recorder and starts its worker.
func NewRecorder(storage evidence.Storage, config *Config, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *evidence.Record, config.AsyncBuffer),
		logger:     logger.With("component", "evidence.recorder"),
		chains:     make(map[string]chainLink),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("evidence recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
		"record_ticks", config.RecordTicks,
	)
	return r
}

// chainLink is the tail of one episode's hash chain.
type chainLink struct {
	seq  uint64
	hash string
}

// Record completes record (ID, chain position, hash) and enqueues it for
// writing. It waits at most WriteTimeout for buffer space. A record that is
// not enqueued does not advance its episode's chain.
func (r *Recorder) Record(record *evidence.Record) error {
	if !r.config.Enabled {
		return nil
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Message = TruncateString(record.Message, r.config.MaxFieldLength)
	record.Error = TruncateString(record.Error, r.config.MaxFieldLength)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return evidence.NewRecorderError(record.ID, evidence.ErrRecorderClosed)
	}

	r.chainMu.Lock()
	defer r.chainMu.Unlock()
	tail := r.chains[record.EpisodeID]
	record.Seq = tail.seq + 1
	record.PrevHash = tail.hash
	record.ContentHash = HashRecord(record)
	advance := func() {
		r.chains[record.EpisodeID] = chainLink{seq: record.Seq, hash: record.ContentHash}
	}

	select {
	case r.recordChan <- record:
		advance()
		return nil
	default:
	}

	timer := time.NewTimer(r.config.WriteTimeout)
	defer timer.Stop()
	select {
	case r.recordChan <- record:
		advance()
		return nil
	case <-timer.C:
		r.dropped.Add(1)
		r.logger.Error("evidence record channel full, dropping record",
			"record_id", record.ID,
			"kind", record.Kind,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return evidence.NewRecorderError(record.ID, evidence.ErrBufferFull)
	}
}

// Observer returns a twin observer recording the events of one episode.
func (r *Recorder) Observer(episodeID, scenario string) twin.Observer {
	return twin.ObserverFunc(func(e twin.Event) {
		if e.Kind == twin.EventTick && !r.config.RecordTicks {
			return
		}
		if err := r.Record(FromEvent(episodeID, scenario, e)); err != nil {
			r.logger.Warn("evidence not recorded", "kind", e.Kind, "tick", e.Tick, "error", err)
		}
	})
}

// EndEpisode drops the chain state of a finished episode. Records for the
// same episode ID recorded afterwards start a new chain at Seq 1.
func (r *Recorder) EndEpisode(episodeID string) {
	r.chainMu.Lock()
	delete(r.chains, episodeID)
	r.chainMu.Unlock()
}

// FromEvent converts a twin event to a record. ID and hash are filled by
// Record.
func FromEvent(episodeID, scenario string, e twin.Event) *evidence.Record {
	record := &evidence.Record{
		EpisodeID: episodeID,
		Scenario:  scenario,
		EventTime: e.Time,
		Tick:      e.Tick,
		Kind:      string(e.Kind),
		Program:   e.Program,
		Message:   e.Message,
	}
	if !e.Lane.IsZero() {
		record.Lane = e.Lane.String()
	}
	if e.Err != nil {
		record.Error = e.Err.Error()
		record.ErrorType = classifyError(e.Err)
	}
	if e.Kind == twin.EventTick {
		record.Source = string(e.Source)
		record.Acceleration = e.Command.Acceleration
		record.Steering = e.Command.Steering
		record.TickDuration = e.Duration
	}
	return record
}

// classifyError names the failure class of a twin error.
func classifyError(err error) string {
	var loadErr *engine.LoadError
	var stepErr *engine.StepError
	switch {
	case errors.As(err, &loadErr):
		return "load:" + string(loadErr.Stage)
	case errors.As(err, &stepErr):
		return "step"
	case errors.Is(err, twin.ErrInvalidLaneTarget):
		return "invalid_lane"
	case errors.Is(err, twin.ErrNoTargetLane):
		return "no_target_lane"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Stats returns the recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}

// Close stops accepting records, drains the buffer and waits for the
// pending writes.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.recordChan)
	r.mu.Unlock()

	r.wg.Wait()

	stats := r.Stats()
	r.logger.Info("evidence recorder shut down",
		"recorded", stats.Recorded,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
	)
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for record := range r.recordChan {
		r.writeRecord(record)
	}
}

func (r *Recorder) writeRecord(record *evidence.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	record.RecordedTime = start.UTC()

	if err := r.storage.Store(ctx, record); err != nil {
		r.failed.Add(1)
		r.logger.Error("failed to store evidence record",
			"record_id", record.ID,
			"episode_id", record.EpisodeID,
			"error", err,
		)
		return
	}
	r.recorded.Add(1)

	if duration := time.Since(start); duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
