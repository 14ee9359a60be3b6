package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleTable() *Table {
	t := &Table{Columns: []string{"episode", "ticks", "termination"}}
	t.Append("ep-1", 1200, "duration")
	t.Append("ep-2", 35, "crashed")
	return t
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	want := "EPISODE  TICKS  TERMINATION\n" +
		"ep-1     1200   duration\n" +
		"ep-2     35     crashed\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("FormatTo() mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name  string
		table *Table
		want  []map[string]string
	}{
		{
			name:  "rows",
			table: sampleTable(),
			want: []map[string]string{
				{"episode": "ep-1", "ticks": "1200", "termination": "duration"},
				{"episode": "ep-2", "ticks": "35", "termination": "crashed"},
			},
		},
		{
			name:  "empty",
			table: &Table{Columns: []string{"episode"}},
			want:  []map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&JSONFormatter{Indent: true}).FormatTo(&buf, tt.table); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			var got []map[string]string
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FormatTo() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCSVFormatter(t *testing.T) {
	table := &Table{Columns: []string{"kind", "message"}}
	table.Append("say", "hello, world")

	var buf bytes.Buffer
	if err := (&CSVFormatter{}).FormatTo(&buf, table); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	want := "kind,message\nsay,\"hello, world\"\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   Formatter
	}{
		{FormatText, &TextFormatter{}},
		{FormatJSON, &JSONFormatter{Indent: true}},
		{FormatCSV, &CSVFormatter{}},
		{"unknown", &TextFormatter{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, NewFormatter(tt.format)); diff != "" {
				t.Errorf("NewFormatter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Field != "output" {
					t.Errorf("ParseOutputFormat(%q) error = %#v, want ConfigError on output", tt.in, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
