package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/twin"
)

// queueFeed hands out programs one per tick.
type queueFeed struct {
	programs []engine.Program
}

func (f *queueFeed) Pending() (engine.Program, bool) {
	if len(f.programs) == 0 {
		return engine.Program{}, false
	}
	p := f.programs[0]
	f.programs = f.programs[1:]
	return p, true
}

const runnerScenario = `
name: runner
duration: 2s
frequency: 10
lanes:
  - {from: a, to: b, straight: {start: [0, 0], end: [1000, 0]}}
ego: {lane: [a, b, 0], s: 50, speed: 20}
`

func newRunner(t *testing.T, scenario string, feed ProgramFeed) (*Runner, *World) {
	t.Helper()
	s, err := ParseScenario([]byte(scenario))
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	tw, err := twin.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tw.Close() })

	r, err := NewRunner(s.Name, w, tw, feed, s.RunnerConfig(), nil)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return r, w
}

func TestRunAutopilotCruise(t *testing.T) {
	r, _ := newRunner(t, runnerScenario, nil)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Termination != TerminationDuration || res.Ticks != 20 || res.AutopilotTicks != 20 {
		t.Errorf("result = %+v", res)
	}
	if math.Abs(res.Distance-40) > 1e-6 {
		t.Errorf("Distance = %v, want 40", res.Distance)
	}
	if res.EpisodeID == "" || res.EpisodeID != r.EpisodeID() {
		t.Errorf("EpisodeID = %q", res.EpisodeID)
	}
	if res.FinalLane != "(a, b, 0)" {
		t.Errorf("FinalLane = %q", res.FinalLane)
	}
}

func TestRunAppliesPendingPrograms(t *testing.T) {
	feed := &queueFeed{programs: []engine.Program{
		{Name: "broken", NewCode: "policy = "},
		{Name: "hold", NewCode: `
policy = function()
  for i = 1, 5 do
    coroutine.yield({0, 0})
  end
end
`},
	}}
	r, _ := newRunner(t, runnerScenario, feed)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := []int{res.Reloads, res.ReloadFailures, res.PolicyTicks, res.AutopilotTicks}
	if diff := cmp.Diff([]int{2, 1, 5, 15}, got); diff != "" {
		t.Errorf("reloads, failures, policy, autopilot mismatch (-want +got):\n%s", diff)
	}
}

func TestRunTerminations(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		program  string
		want     Termination
	}{
		{
			name:     "off road",
			scenario: runnerScenario,
			program:  `policy = function() while true do coroutine.yield({0, 1}) end end`,
			want:     TerminationOffRoad,
		},
		{
			name: "crash",
			scenario: `
duration: 10s
lanes:
  - {from: a, to: b, straight: {start: [0, 0], end: [1000, 0]}}
ego: {lane: [a, b, 0], s: 50, speed: 20}
traffic:
  - {lane: [a, b, 0], s: 75, speed: 5}
`,
			program: `policy = function() while true do coroutine.yield({6, 0}) end end`,
			want:    TerminationCrashed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &queueFeed{programs: []engine.Program{{Name: tt.name, NewCode: tt.program}}}
			r, _ := newRunner(t, tt.scenario, feed)
			res, err := r.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Termination != tt.want {
				t.Errorf("Termination = %q, want %q", res.Termination, tt.want)
			}
			if res.Ticks >= 20 {
				t.Errorf("Ticks = %d, want an early end", res.Ticks)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	r, _ := newRunner(t, runnerScenario, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res.Termination != TerminationCancelled || res.Ticks != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	tw, err := twin.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tw.Close()

	if _, err := NewRunner("empty", NewWorld(nil), tw, nil, RunnerConfig{Duration: 1, Frequency: 1}, nil); !errors.Is(err, ErrNoEgo) {
		t.Errorf("NewRunner() without ego error = %v, want ErrNoEgo", err)
	}

	s, _ := ParseScenario([]byte(runnerScenario))
	w, _ := s.Build()
	if _, err := NewRunner("bad", w, tw, nil, RunnerConfig{}, nil); !errors.Is(err, ErrInvalidScenario) {
		t.Errorf("NewRunner() with zero config error = %v, want ErrInvalidScenario", err)
	}
}
