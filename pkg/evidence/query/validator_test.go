package query

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/drivetwin/pkg/evidence"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	lo, hi := uint64(10), uint64(20)

	tests := []struct {
		name   string
		query  *evidence.Query
		errMsg string
	}{
		{
			name: "valid query with all filters",
			query: &evidence.Query{
				StartTime: &past,
				EndTime:   &now,
				EpisodeID: "ep",
				Scenario:  "highway",
				Program:   "overtake",
				Kinds:     []string{"tick", "lane_change"},
				Source:    "policy",
				MinTick:   &lo,
				MaxTick:   &hi,
				Status:    "error",
				Limit:     100,
				Offset:    10,
				SortBy:    "tick",
				SortOrder: "desc",
			},
		},
		{name: "empty query", query: &evidence.Query{}},
		{name: "negative limit", query: &evidence.Query{Limit: -1}, errMsg: "limit must be >= 0"},
		{name: "limit too large", query: &evidence.Query{Limit: MaxLimit + 1}, errMsg: "limit must be <="},
		{name: "negative offset", query: &evidence.Query{Offset: -5}, errMsg: "offset must be >= 0"},
		{name: "invalid sort field", query: &evidence.Query{SortBy: "cost"}, errMsg: "invalid sort field"},
		{name: "invalid sort order", query: &evidence.Query{SortOrder: "up"}, errMsg: "invalid sort order"},
		{name: "inverted time range", query: &evidence.Query{StartTime: &now, EndTime: &past}, errMsg: "start_time must be before end_time"},
		{name: "inverted tick range", query: &evidence.Query{MinTick: &hi, MaxTick: &lo}, errMsg: "min_tick must be <= max_tick"},
		{name: "unknown kind", query: &evidence.Query{Kinds: []string{"tick", "crash"}}, errMsg: "unknown event kind: crash"},
		{name: "invalid source", query: &evidence.Query{Source: "human"}, errMsg: "invalid source"},
		{name: "invalid status", query: &evidence.Query{Status: "blocked"}, errMsg: "invalid status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
			var queryErr *evidence.QueryError
			if !errors.As(err, &queryErr) {
				t.Errorf("Validate() error type = %T, want *evidence.QueryError", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &evidence.Query{}
	ApplyDefaults(q)
	want := &evidence.Query{Limit: DefaultLimit, SortBy: "event_time", SortOrder: "asc"}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Errorf("ApplyDefaults() mismatch (-want +got):\n%s", diff)
	}

	q = &evidence.Query{Limit: 5, SortBy: "tick", SortOrder: "desc"}
	ApplyDefaults(q)
	want = &evidence.Query{Limit: 5, SortBy: "tick", SortOrder: "desc"}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Errorf("ApplyDefaults() overrode set fields (-want +got):\n%s", diff)
	}
}
