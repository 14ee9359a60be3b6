// Package query validates evidence queries before they reach a storage
// backend.
//
// Validate rejects negative or oversized pages, unknown sort fields, unknown
// event kinds and inverted time or tick ranges. ApplyDefaults fills the
// page size and sorts records in episode order:
//
//	q := &evidence.Query{EpisodeID: id, Kinds: []string{"step_failure"}}
//	if err := query.Validate(q); err != nil {
//	    return err
//	}
//	query.ApplyDefaults(q)
//	records, err := store.Query(ctx, q)
package query
