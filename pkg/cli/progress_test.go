package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBar(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "episodes")

	progress.Start(4)
	progress.Update(2)
	progress.Finish()

	output := buf.String()
	for _, want := range []string{"episodes 0/4", "eta -", "episodes 2/4", " 50%", "episodes 4/4", "100% done"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q does not contain %q", output, want)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("Finish() did not end the line: %q", output)
	}
}

func TestBarClampsUpdate(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "")
	progress.Start(3)
	progress.Update(10)

	if !strings.Contains(buf.String(), "items 3/3") {
		t.Errorf("Update beyond total not clamped: %q", buf.String())
	}
}

func TestBarZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "episodes")

	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if buf.Len() != 0 {
		t.Errorf("zero total rendered %q, want nothing", buf.String())
	}
}

func TestBarError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "episodes")

	progress.Start(10)
	progress.Error(errors.New("scenario crashed"))

	if !strings.Contains(buf.String(), "Error: scenario crashed") {
		t.Errorf("output %q does not contain the error", buf.String())
	}
}
