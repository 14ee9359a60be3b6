package evidence

import (
	"context"
	"io"
	"time"
)

// Record is an immutable account of one twin event in one episode.
type Record struct {
	// ID is a unique identifier (UUID) for this record.
	ID string `json:"id"`

	// EpisodeID groups the records of one simulation run.
	EpisodeID string `json:"episode_id"`

	// Scenario is the name of the scenario the episode ran.
	Scenario string `json:"scenario"`

	// EventTime is when the twin reported the event.
	EventTime time.Time `json:"event_time"`

	// RecordedTime is when the record was written to storage.
	RecordedTime time.Time `json:"recorded_time"`

	// Tick is the twin tick the event belongs to.
	Tick uint64 `json:"tick"`

	// Kind is the twin event kind (tick, policy_loaded, lane_change, ...).
	Kind string `json:"kind"`

	// Program is the name of the last loaded policy program.
	Program string `json:"program,omitempty"`

	// Message carries say text or a description of the event.
	Message string `json:"message,omitempty"`

	// Lane is the lane involved in lane and route events.
	Lane string `json:"lane,omitempty"`

	// Error and ErrorType are set for load and step failures.
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`

	// Source, Acceleration, Steering and TickDuration are set for tick events.
	Source       string        `json:"source,omitempty"`
	Acceleration float64       `json:"acceleration"`
	Steering     float64       `json:"steering"`
	TickDuration time.Duration `json:"tick_duration"`

	// Seq numbers the records of an episode from 1 in recording order.
	// Zero means the record predates chaining.
	Seq uint64 `json:"seq"`

	// PrevHash is the ContentHash of the episode's previous record, empty
	// for the first one.
	PrevHash string `json:"prev_hash,omitempty"`

	// ContentHash is the SHA-256 fingerprint of the record's content fields,
	// Seq and PrevHash included.
	ContentHash string `json:"content_hash"`
}

// Failed reports whether the record describes a failure.
func (r *Record) Failed() bool {
	return r.Error != ""
}

// Query filters evidence records.
type Query struct {
	// StartTime and EndTime bound EventTime (inclusive).
	StartTime *time.Time
	EndTime   *time.Time

	EpisodeID string
	Scenario  string
	Program   string

	// Kinds matches any of the listed event kinds.
	Kinds []string

	// Source matches the command source of tick records.
	Source string

	// MinTick and MaxTick bound the tick number (inclusive).
	MinTick *uint64
	MaxTick *uint64

	// Status filters by outcome ("success" or "error").
	Status string

	// Limit is the maximum number of records to return (0 = no limit).
	Limit int

	// Offset is the number of records to skip (for pagination).
	Offset int

	// SortBy is the field to sort by ("event_time", "recorded_time", "tick", "seq").
	SortBy string

	// SortOrder is the sort direction ("asc" or "desc").
	SortOrder string
}

// Storage persists and retrieves evidence records.
type Storage interface {
	// Store persists a single record.
	Store(ctx context.Context, record *Record) error

	// Query returns the records matching query.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// QueryStream streams matching records. Both channels are closed when
	// the query completes; at most one error is delivered.
	QueryStream(ctx context.Context, query *Query) (<-chan *Record, <-chan error, error)

	// Count returns the number of matching records.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching records and returns how many were removed.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases the backend's resources.
	Close() error
}

// Exporter writes evidence records in some format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
	ExportStream(ctx context.Context, records <-chan *Record, w io.Writer) error
}

// Episode summarises one simulation run.
type Episode struct {
	EpisodeID      string     `json:"episode_id"`
	Scenario       string     `json:"scenario"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Termination    string     `json:"termination,omitempty"`
	Ticks          uint64     `json:"ticks"`
	PolicyTicks    int        `json:"policy_ticks"`
	AutopilotTicks int        `json:"autopilot_ticks"`
	Distance       float64    `json:"distance"`
}

// EpisodeStorage is implemented by backends that keep episode summaries.
type EpisodeStorage interface {
	SaveEpisode(ctx context.Context, episode *Episode) error
	Episodes(ctx context.Context, limit int) ([]*Episode, error)
}
