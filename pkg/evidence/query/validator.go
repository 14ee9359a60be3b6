package query

import (
	"fmt"

	"github.com/samber/lo"

	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/twin"
)

const (
	// DefaultLimit is the default number of records to return if not specified.
	DefaultLimit = 100

	// MaxLimit is the maximum number of records that can be returned in a single query.
	MaxLimit = 10000
)

// ValidSortFields contains the fields that can be used for sorting.
var ValidSortFields = map[string]bool{
	"event_time":    true,
	"recorded_time": true,
	"tick":          true,
	"seq":           true,
}

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// ValidKinds lists the event kinds a record can have.
var ValidKinds = []string{
	string(twin.EventTick),
	string(twin.EventPolicyLoaded),
	string(twin.EventLoadFailure),
	string(twin.EventStepFailure),
	string(twin.EventPolicyExhausted),
	string(twin.EventInvalidLaneTarget),
	string(twin.EventStopRecovered),
	string(twin.EventLaneChange),
	string(twin.EventRoutePlanned),
	string(twin.EventSay),
}

// Validate validates a query and returns an error if any parameters are invalid.
func Validate(q *evidence.Query) error {
	if q.Limit < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}

	if q.SortBy != "" && !ValidSortFields[q.SortBy] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort field: %s", q.SortBy))
	}
	if q.SortOrder != "" && !ValidSortOrders[q.SortOrder] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}

	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	if q.MinTick != nil && q.MaxTick != nil && *q.MinTick > *q.MaxTick {
		return evidence.NewQueryError(q, fmt.Errorf("min_tick must be <= max_tick"))
	}

	if unknown, _ := lo.Difference(q.Kinds, ValidKinds); len(unknown) > 0 {
		return evidence.NewQueryError(q, fmt.Errorf("unknown event kind: %s", unknown[0]))
	}

	switch twin.Source(q.Source) {
	case "", twin.SourcePolicy, twin.SourceAutopilot:
	default:
		return evidence.NewQueryError(q, fmt.Errorf("invalid source: %s (must be 'policy' or 'autopilot')", q.Source))
	}

	if q.Status != "" && q.Status != "success" && q.Status != "error" {
		return evidence.NewQueryError(q, fmt.Errorf("invalid status: %s (must be 'success' or 'error')", q.Status))
	}
	return nil
}

// ApplyDefaults applies default values to a query. Records read back in
// episode order unless asked otherwise.
func ApplyDefaults(q *evidence.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortBy == "" {
		q.SortBy = "event_time"
	}
	if q.SortOrder == "" {
		q.SortOrder = "asc"
	}
}
