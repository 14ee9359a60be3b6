package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/samber/lo"

	"mercator-hq/drivetwin/pkg/evidence"
)

// CSVExporter writes one row per record, optionally after a header row.
type CSVExporter struct {
	IncludeHeader bool
}

func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

type column struct {
	name  string
	value func(*evidence.Record) string
}

var columns = []column{
	{"id", func(r *evidence.Record) string { return r.ID }},
	{"episode_id", func(r *evidence.Record) string { return r.EpisodeID }},
	{"scenario", func(r *evidence.Record) string { return r.Scenario }},
	{"event_time", func(r *evidence.Record) string { return csvTime(r.EventTime) }},
	{"recorded_time", func(r *evidence.Record) string { return csvTime(r.RecordedTime) }},
	{"tick", func(r *evidence.Record) string { return strconv.FormatUint(r.Tick, 10) }},
	{"kind", func(r *evidence.Record) string { return r.Kind }},
	{"program", func(r *evidence.Record) string { return r.Program }},
	{"message", func(r *evidence.Record) string { return r.Message }},
	{"lane", func(r *evidence.Record) string { return r.Lane }},
	{"error", func(r *evidence.Record) string { return r.Error }},
	{"error_type", func(r *evidence.Record) string { return r.ErrorType }},
	{"source", func(r *evidence.Record) string { return r.Source }},
	{"acceleration", func(r *evidence.Record) string { return csvFloat(r.Acceleration) }},
	{"steering", func(r *evidence.Record) string { return csvFloat(r.Steering) }},
	{"tick_duration_us", func(r *evidence.Record) string { return strconv.FormatInt(r.TickDuration.Microseconds(), 10) }},
	{"content_hash", func(r *evidence.Record) string { return r.ContentHash }},
	{"seq", func(r *evidence.Record) string { return strconv.FormatUint(r.Seq, 10) }},
	{"prev_hash", func(r *evidence.Record) string { return r.PrevHash }},
}

// Header is the CSV column order.
var Header = lo.Map(columns, func(c column, _ int) string { return c.name })

// streamFlushRows bounds how many rows ExportStream buffers.
const streamFlushRows = 100

func (e *CSVExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	out := e.table(w)
	for _, r := range records {
		if err := out.row(r); err != nil {
			return err
		}
	}
	return out.flush()
}

// ExportStream writes rows as records arrive, flushing every
// streamFlushRows rows and when ch is closed.
func (e *CSVExporter) ExportStream(ctx context.Context, ch <-chan *evidence.Record, w io.Writer) error {
	out := e.table(w)
	for {
		select {
		case <-ctx.Done():
			_ = out.flush()
			return ctx.Err()
		case r, ok := <-ch:
			if !ok {
				return out.flush()
			}
			if err := out.row(r); err != nil {
				return err
			}
			if out.n%streamFlushRows == 0 {
				if err := out.flush(); err != nil {
					return err
				}
			}
		}
	}
}

func (e *CSVExporter) table(w io.Writer) *csvTable {
	return &csvTable{w: csv.NewWriter(w), header: e.IncludeHeader}
}

// csvTable writes the header lazily before the first row or flush.
type csvTable struct {
	w      *csv.Writer
	header bool
	n      int
}

func (t *csvTable) row(r *evidence.Record) error {
	if err := t.writeHeader(); err != nil {
		return err
	}
	fields := lo.Map(columns, func(c column, _ int) string { return c.value(r) })
	if err := t.w.Write(fields); err != nil {
		return evidence.NewExportError("csv", t.n, err)
	}
	t.n++
	return nil
}

func (t *csvTable) flush() error {
	if err := t.writeHeader(); err != nil {
		return err
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return evidence.NewExportError("csv", t.n, err)
	}
	return nil
}

func (t *csvTable) writeHeader() error {
	if !t.header {
		return nil
	}
	t.header = false
	if err := t.w.Write(Header); err != nil {
		return evidence.NewExportError("csv", 0, err)
	}
	return nil
}

func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func csvFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
