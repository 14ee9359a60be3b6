// Package export writes evidence records as JSON or CSV.
//
// Both exporters offer Export for a slice and ExportStream for the channel
// returned by Storage.QueryStream, so a long episode can be exported
// without loading it into memory:
//
//	exporter, err := export.New("csv", false)
//	if err != nil {
//	    return err
//	}
//	records, errs, err := store.QueryStream(ctx, &evidence.Query{EpisodeID: id})
//	if err != nil {
//	    return err
//	}
//	if err := exporter.ExportStream(ctx, records, os.Stdout); err != nil {
//	    return err
//	}
//	return <-errs
//
// CSV timestamps are RFC 3339 in UTC and tick durations are microseconds.
package export
