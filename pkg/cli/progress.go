package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

const barWidth = 30

// Bar redraws a single status line: label, count, bar and the estimated
// time left from the mean time per item so far.
type Bar struct {
	w     io.Writer
	label string

	mu      sync.Mutex
	total   int64
	done    int64
	started time.Time
}

// NewProgressReporter returns a Bar writing to w, os.Stderr if nil.
func NewProgressReporter(w io.Writer, label string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	if label == "" {
		label = "items"
	}
	return &Bar{w: w, label: label}
}

func (b *Bar) Start(total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total, b.done, b.started = total, 0, time.Now()
	b.draw()
}

// Update sets the number of finished items, capped at the total.
func (b *Bar) Update(done int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = min(done, b.total)
	b.draw()
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = b.total
	b.draw()
	if b.total > 0 {
		fmt.Fprintln(b.w)
	}
}

func (b *Bar) Error(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.w, "\n✗ Error: %v\n", err)
}

func (b *Bar) draw() {
	if b.total <= 0 {
		return
	}
	filled := int(int64(barWidth) * b.done / b.total)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	fmt.Fprintf(b.w, "\r%s %d/%d [%s] %3d%% %s",
		b.label, b.done, b.total, bar, 100*b.done/b.total, b.eta())
}

func (b *Bar) eta() string {
	switch {
	case b.done >= b.total:
		return "done"
	case b.done == 0:
		return "eta -"
	}
	perItem := time.Since(b.started) / time.Duration(b.done)
	left := perItem * time.Duration(b.total-b.done)
	return "eta " + left.Round(time.Second).String()
}
