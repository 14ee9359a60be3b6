package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/twin"
)

// Termination is why an episode ended.
type Termination string

const (
	TerminationDuration  Termination = "duration"
	TerminationOffRoad   Termination = "off_road"
	TerminationCrashed   Termination = "crashed"
	TerminationCancelled Termination = "cancelled"
)

// ProgramFeed hands new policy programs to the tick loop. It is polled once
// per tick, before the twin acts.
type ProgramFeed interface {
	Pending() (engine.Program, bool)
}

// RunnerConfig controls an episode.
type RunnerConfig struct {
	// EpisodeID identifies the episode in logs. Generated when empty.
	EpisodeID string

	// Duration is the simulated episode length.
	Duration time.Duration

	// Frequency is the number of ticks per simulated second.
	Frequency int
}

// Result summarises a finished episode.
type Result struct {
	EpisodeID   string        `json:"episode_id"`
	Scenario    string        `json:"scenario"`
	Ticks       uint64        `json:"ticks"`
	Elapsed     time.Duration `json:"elapsed"`
	Termination Termination   `json:"termination"`

	PolicyTicks    int `json:"policy_ticks"`
	AutopilotTicks int `json:"autopilot_ticks"`
	Reloads        int `json:"reloads"`
	ReloadFailures int `json:"reload_failures"`

	Distance   float64 `json:"distance"`
	FinalSpeed float64 `json:"final_speed"`
	FinalLane  string  `json:"final_lane"`
}

// Runner drives one twin through one episode of a world.
type Runner struct {
	name   string
	world  *World
	twin   *twin.Twin
	feed   ProgramFeed
	config RunnerConfig
	logger *slog.Logger
}

// NewRunner creates a runner. feed may be nil.
func NewRunner(name string, world *World, tw *twin.Twin, feed ProgramFeed, config RunnerConfig, logger *slog.Logger) (*Runner, error) {
	if world.Ego() == nil {
		return nil, ErrNoEgo
	}
	if config.Duration <= 0 || config.Frequency <= 0 {
		return nil, fmt.Errorf("%w: duration and frequency must be positive", ErrInvalidScenario)
	}
	if config.EpisodeID == "" {
		config.EpisodeID = NewEpisodeID()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		name:   name,
		world:  world,
		twin:   tw,
		feed:   feed,
		config: config,
		logger: logger.With("component", "sim", "episode_id", config.EpisodeID),
	}, nil
}

// EpisodeID returns the identifier of the runner's episode.
func (r *Runner) EpisodeID() string { return r.config.EpisodeID }

// Run resets the twin onto the ego and ticks until the episode ends. Policy
// failures never end an episode; only cancellation returns an error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ego := r.world.Ego()
	r.twin.Reset(r.world, ego)

	dt := time.Second / time.Duration(r.config.Frequency)
	ticks := uint64(r.config.Duration / dt)
	start := ego.Position()
	res := &Result{EpisodeID: r.config.EpisodeID, Scenario: r.name, Termination: TerminationDuration}

	r.logger.Info("episode started",
		"scenario", r.name,
		"ticks", ticks,
		"frequency", r.config.Frequency,
	)

	for res.Ticks < ticks {
		if err := ctx.Err(); err != nil {
			res.Termination = TerminationCancelled
			r.finish(res, start)
			return res, err
		}

		r.applyPending(ctx, res)

		cmd := r.twin.Act(ctx)
		if r.twin.LastSource() == twin.SourcePolicy {
			res.PolicyTicks++
		} else {
			res.AutopilotTicks++
		}
		r.world.Step(cmd, dt)
		res.Ticks++

		if ego.Crashed() {
			res.Termination = TerminationCrashed
			break
		}
		if !ego.OnRoad() {
			res.Termination = TerminationOffRoad
			break
		}
	}

	r.finish(res, start)
	r.logger.Info("episode finished",
		"termination", res.Termination,
		"ticks", res.Ticks,
		"policy_ticks", res.PolicyTicks,
		"distance", res.Distance,
	)
	return res, nil
}

// applyPending loads a program handed over since the last tick.
func (r *Runner) applyPending(ctx context.Context, res *Result) {
	if r.feed == nil {
		return
	}
	program, ok := r.feed.Pending()
	if !ok {
		return
	}
	res.Reloads++
	if err := r.twin.LoadProgram(ctx, program); err != nil {
		res.ReloadFailures++
		r.logger.Warn("pending program rejected", "program", program.Name, "error", err)
	}
}

func (r *Runner) finish(res *Result, start r2.Vec) {
	ego := r.world.Ego()
	res.Elapsed = r.world.Elapsed()
	res.Distance = r2.Norm(r2.Sub(ego.Position(), start))
	res.FinalSpeed = ego.Speed()
	res.FinalLane = ego.LaneIndex().String()
}
