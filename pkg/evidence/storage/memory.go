package storage

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"mercator-hq/drivetwin/pkg/evidence"
)

// MemoryStorage implements evidence.Storage and evidence.EpisodeStorage in
// memory. Records are kept in insertion order.
type MemoryStorage struct {
	records  []*evidence.Record
	episodes map[string]*evidence.Episode
	mu       sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		episodes: make(map[string]*evidence.Episode),
	}
}

// Store keeps a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *evidence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *record
	s.records = append(s.records, &recordCopy)
	return nil
}

// Query returns copies of the matching records, sorted and paginated like
// the SQLite backend.
func (s *MemoryStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(query), nil
}

func (s *MemoryStorage) query(query *evidence.Query) []*evidence.Record {
	results := []*evidence.Record{}
	for _, record := range s.records {
		if matchesQuery(record, query) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}
	sortRecords(results, query)

	start := min(query.Offset, len(results))
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results
}

// QueryStream streams a snapshot of the matching records.
func (s *MemoryStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	recordsCh := make(chan *evidence.Record, 100)
	errCh := make(chan error, 1)

	s.mu.RLock()
	results := s.query(query)
	s.mu.RUnlock()

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		for _, record := range results {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- record:
			}
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(lo.CountBy(s.records, func(r *evidence.Record) bool {
		return matchesQuery(r, query)
	})), nil
}

// Delete removes matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept, removed := lo.FilterReject(s.records, func(r *evidence.Record, _ int) bool {
		return !matchesQuery(r, query)
	})
	s.records = kept
	return int64(len(removed)), nil
}

// SaveEpisode inserts or replaces an episode summary.
func (s *MemoryStorage) SaveEpisode(ctx context.Context, e *evidence.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	episodeCopy := *e
	s.episodes[e.EpisodeID] = &episodeCopy
	return nil
}

// Episodes returns the most recently started episodes first.
func (s *MemoryStorage) Episodes(ctx context.Context, limit int) ([]*evidence.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.Map(lo.Values(s.episodes), func(e *evidence.Episode, _ int) *evidence.Episode {
		episodeCopy := *e
		return &episodeCopy
	})
	slices.SortFunc(out, func(a, b *evidence.Episode) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matchesQuery(record *evidence.Record, query *evidence.Query) bool {
	if query.StartTime != nil && record.EventTime.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && record.EventTime.After(*query.EndTime) {
		return false
	}
	if query.EpisodeID != "" && record.EpisodeID != query.EpisodeID {
		return false
	}
	if query.Scenario != "" && record.Scenario != query.Scenario {
		return false
	}
	if query.Program != "" && record.Program != query.Program {
		return false
	}
	if len(query.Kinds) > 0 && !lo.Contains(query.Kinds, record.Kind) {
		return false
	}
	if query.Source != "" && record.Source != query.Source {
		return false
	}
	if query.MinTick != nil && record.Tick < *query.MinTick {
		return false
	}
	if query.MaxTick != nil && record.Tick > *query.MaxTick {
		return false
	}
	switch query.Status {
	case "success":
		return !record.Failed()
	case "error":
		return record.Failed()
	}
	return true
}

func sortRecords(records []*evidence.Record, query *evidence.Query) {
	desc := strings.EqualFold(query.SortOrder, "desc")
	slices.SortStableFunc(records, func(a, b *evidence.Record) int {
		var c int
		switch query.SortBy {
		case "recorded_time":
			c = a.RecordedTime.Compare(b.RecordedTime)
		case "tick":
			c = cmp.Compare(a.Tick, b.Tick)
		case "seq":
			c = cmp.Compare(a.Seq, b.Seq)
		default:
			c = a.EventTime.Compare(b.EventTime)
		}
		if c == 0 {
			c = cmp.Compare(a.Tick, b.Tick)
		}
		if desc {
			return -c
		}
		return c
	})
}
