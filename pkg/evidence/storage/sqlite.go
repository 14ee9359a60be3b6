package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/drivetwin/pkg/evidence"
)

// SQL driver names accepted by SQLiteConfig.Driver.
const (
	// DriverMattn is the cgo driver github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"

	// DriverModernc is the pure Go driver modernc.org/sqlite.
	DriverModernc = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the SQL driver (DriverMattn or DriverModernc).
	// Default: DriverMattn
	Driver string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/evidence.db",
		Driver:       DriverMattn,
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const columns = `id, episode_id, scenario, event_time, recorded_time, tick, kind,
	program, message, lane, error, error_type,
	source, acceleration, steering, tick_duration, content_hash,
	seq, prev_hash`

// sortColumns maps query sort fields to columns.
var sortColumns = map[string]string{
	"event_time":    "event_time",
	"recorded_time": "recorded_time",
	"tick":          "tick",
	"seq":           "seq",
}

// SQLiteStorage implements evidence.Storage and evidence.EpisodeStorage on
// SQLite. The schema is managed by embedded migrations.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and applies pending migrations.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverMattn
	}

	logger := slog.Default().With("component", "evidence.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	// Every connection to :memory: is a separate database.
	if config.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite storage initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return evidence.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	version, err := migrateUp(s.db, s.config.Driver, s.logger)
	if err != nil {
		return evidence.NewStorageError("sqlite", "migrate", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store persists an evidence record.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.Record) error {
	query := `INSERT INTO evidence (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.EpisodeID, record.Scenario,
		record.EventTime.UnixNano(), record.RecordedTime.UnixNano(),
		int64(record.Tick), record.Kind,
		nullable(record.Program), nullable(record.Message), nullable(record.Lane),
		nullable(record.Error), nullable(record.ErrorType),
		nullable(record.Source), record.Acceleration, record.Steering,
		int64(record.TickDuration), record.ContentHash,
		int64(record.Seq), nullable(record.PrevHash),
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves records matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	sqlQuery, args := s.selectQuery(query)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*evidence.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// QueryStream streams matching records for exports of long episodes.
func (s *SQLiteStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	recordsCh := make(chan *evidence.Record, 100)
	errCh := make(chan error, 1)
	sqlQuery, args := s.selectQuery(query)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
		if err != nil {
			errCh <- evidence.NewStorageError("sqlite", "query_stream", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			record, err := scanRow(rows)
			if err != nil {
				errCh <- evidence.NewStorageError("sqlite", "scan", err)
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- evidence.NewStorageError("sqlite", "query_stream", err)
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of records matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhereClause(query)
	sqlQuery := "SELECT COUNT(*) FROM evidence" + where

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes records matching the query filters and returns how many
// were removed.
func (s *SQLiteStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhereClause(query)
	result, err := s.db.ExecContext(ctx, "DELETE FROM evidence"+where, args...)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// SaveEpisode inserts or replaces an episode summary.
func (s *SQLiteStorage) SaveEpisode(ctx context.Context, e *evidence.Episode) error {
	var finished interface{}
	if e.FinishedAt != nil {
		finished = e.FinishedAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (episode_id, scenario, started_at, finished_at, termination,
			ticks, policy_ticks, autopilot_ticks, distance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(episode_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			termination = excluded.termination,
			ticks = excluded.ticks,
			policy_ticks = excluded.policy_ticks,
			autopilot_ticks = excluded.autopilot_ticks,
			distance = excluded.distance`,
		e.EpisodeID, e.Scenario, e.StartedAt.UnixNano(), finished, nullable(e.Termination),
		int64(e.Ticks), e.PolicyTicks, e.AutopilotTicks, e.Distance,
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "save_episode", err)
	}
	return nil
}

// Episodes returns the most recently started episodes first.
func (s *SQLiteStorage) Episodes(ctx context.Context, limit int) ([]*evidence.Episode, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT episode_id, scenario, started_at, finished_at, termination,
			ticks, policy_ticks, autopilot_ticks, distance
		FROM episodes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "episodes", err)
	}
	defer rows.Close()

	var out []*evidence.Episode
	for rows.Next() {
		var (
			e           evidence.Episode
			started     int64
			finished    sql.NullInt64
			termination sql.NullString
			ticks       int64
		)
		if err := rows.Scan(&e.EpisodeID, &e.Scenario, &started, &finished, &termination,
			&ticks, &e.PolicyTicks, &e.AutopilotTicks, &e.Distance); err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		e.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			t := time.Unix(0, finished.Int64).UTC()
			e.FinishedAt = &t
		}
		e.Termination = termination.String
		e.Ticks = uint64(ticks)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "episodes", err)
	}
	return out, nil
}

// Close releases the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("sqlite storage closed")
	return nil
}

func (s *SQLiteStorage) selectQuery(query *evidence.Query) (string, []interface{}) {
	where, args := buildWhereClause(query)
	sqlQuery := "SELECT " + columns + " FROM evidence" + where

	sortBy, ok := sortColumns[query.SortBy]
	if !ok {
		sortBy = "event_time"
	}
	sortOrder := "ASC"
	if strings.EqualFold(query.SortOrder, "desc") {
		sortOrder = "DESC"
	}
	// id keeps the order of records with equal sort keys stable.
	sqlQuery += fmt.Sprintf(" ORDER BY %s %s, tick %s, id ASC", sortBy, sortOrder, sortOrder)

	if query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
	} else if query.Offset > 0 {
		sqlQuery += " LIMIT -1"
	}
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}
	return sqlQuery, args
}

// buildWhereClause returns " WHERE ..." (or "") and its arguments.
func buildWhereClause(query *evidence.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg ...interface{}) {
		conditions = append(conditions, cond)
		args = append(args, arg...)
	}

	if query.StartTime != nil {
		add("event_time >= ?", query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		add("event_time <= ?", query.EndTime.UnixNano())
	}
	if query.EpisodeID != "" {
		add("episode_id = ?", query.EpisodeID)
	}
	if query.Scenario != "" {
		add("scenario = ?", query.Scenario)
	}
	if query.Program != "" {
		add("program = ?", query.Program)
	}
	if len(query.Kinds) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(query.Kinds)), ",")
		kinds := make([]interface{}, len(query.Kinds))
		for i, k := range query.Kinds {
			kinds[i] = k
		}
		add("kind IN ("+placeholders+")", kinds...)
	}
	if query.Source != "" {
		add("source = ?", query.Source)
	}
	if query.MinTick != nil {
		add("tick >= ?", int64(*query.MinTick))
	}
	if query.MaxTick != nil {
		add("tick <= ?", int64(*query.MaxTick))
	}
	switch query.Status {
	case "success":
		add("error IS NULL")
	case "error":
		add("error IS NOT NULL")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRow(rows *sql.Rows) (*evidence.Record, error) {
	var (
		r                           evidence.Record
		eventTime, recordedTime     int64
		tick, tickDuration, seq     int64
		prevHash                    sql.NullString
		program, message, lane      sql.NullString
		errorVal, errorType, source sql.NullString
	)
	err := rows.Scan(
		&r.ID, &r.EpisodeID, &r.Scenario, &eventTime, &recordedTime, &tick, &r.Kind,
		&program, &message, &lane, &errorVal, &errorType,
		&source, &r.Acceleration, &r.Steering, &tickDuration, &r.ContentHash,
		&seq, &prevHash,
	)
	if err != nil {
		return nil, err
	}
	r.EventTime = time.Unix(0, eventTime).UTC()
	r.RecordedTime = time.Unix(0, recordedTime).UTC()
	r.Tick = uint64(tick)
	r.TickDuration = time.Duration(tickDuration)
	r.Program = program.String
	r.Message = message.String
	r.Lane = lane.String
	r.Error = errorVal.String
	r.ErrorType = errorType.String
	r.Source = source.String
	r.Seq = uint64(seq)
	r.PrevHash = prevHash.String
	return &r, nil
}

// nullable stores empty strings as NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
