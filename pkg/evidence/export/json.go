package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/drivetwin/pkg/evidence"
)

// JSONExporter writes records as one JSON array, indented when Pretty is
// set. Records are encoded one at a time, so streaming exports never hold
// the whole result.
type JSONExporter struct {
	Pretty bool
}

func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

func (e *JSONExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	arr := e.array(w)
	for _, r := range records {
		if err := arr.add(r); err != nil {
			return err
		}
	}
	return arr.close()
}

// ExportStream writes the records received on ch and closes the array once
// ch is closed.
func (e *JSONExporter) ExportStream(ctx context.Context, ch <-chan *evidence.Record, w io.Writer) error {
	arr := e.array(w)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-ch:
			if !ok {
				return arr.close()
			}
			if err := arr.add(r); err != nil {
				return err
			}
		}
	}
}

func (e *JSONExporter) array(w io.Writer) *jsonArray {
	return &jsonArray{w: w, pretty: e.Pretty}
}

// jsonArray emits "[", the elements and "]" around them. The pretty layout
// matches json.MarshalIndent of the whole slice.
type jsonArray struct {
	w      io.Writer
	pretty bool
	n      int
}

func (a *jsonArray) add(r *evidence.Record) error {
	var (
		data []byte
		err  error
	)
	if a.pretty {
		data, err = json.MarshalIndent(r, "  ", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return a.fail(err)
	}

	lead := ","
	if a.n == 0 {
		lead = "["
	}
	if a.pretty {
		lead += "\n  "
	}
	if _, err := io.WriteString(a.w, lead); err != nil {
		return a.fail(err)
	}
	if _, err := a.w.Write(data); err != nil {
		return a.fail(err)
	}
	a.n++
	return nil
}

func (a *jsonArray) close() error {
	tail := "]"
	switch {
	case a.n == 0:
		tail = "[]"
	case a.pretty:
		tail = "\n]"
	}
	if _, err := io.WriteString(a.w, tail); err != nil {
		return a.fail(err)
	}
	return nil
}

func (a *jsonArray) fail(err error) error {
	return evidence.NewExportError("json", a.n, err)
}
