package retention

import (
	"context"
	"testing"
	"time"

	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/evidence/storage"
)

func TestSchedulerStart(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"daily", "0 3 * * *", true, false},
		{"descriptor", "@every 1h", true, false},
		{"empty schedule", "", false, false},
		{"invalid", "invalid cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: tt.schedule}, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := p.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if got := p.scheduler.Running(); got != tt.wantRunning {
				t.Errorf("Running() = %v, want %v", got, tt.wantRunning)
			}
			if tt.wantRunning && p.NextPruning() == nil {
				t.Errorf("NextPruning() = nil for a running scheduler")
			}

			p.Stop()
			if p.scheduler.Running() {
				t.Errorf("scheduler still running after Stop()")
			}
			if p.NextPruning() != nil {
				t.Errorf("NextPruning() != nil after Stop()")
			}
		})
	}
}

func TestSchedulerRunsPruning(t *testing.T) {
	store := storage.NewMemoryStorage()
	old := time.Now().Add(-48 * time.Hour)
	if err := store.Store(context.Background(), &evidence.Record{ID: "old", EventTime: old, Kind: "tick"}); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	p := NewPruner(store, &Config{MaxAge: time.Hour, PruneSchedule: "@every 1s"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer p.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for store.Size() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("record not pruned within 5s")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "0 3 * * *"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for p.scheduler.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler still running after context cancelled")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerRestart(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "0 3 * * *"}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start() #%d failed: %v", i, err)
		}
		if err := p.Start(ctx); err == nil {
			t.Fatalf("second Start() #%d succeeded on a running scheduler", i)
		}
		p.Stop()
	}
}
