package twin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/lanechange"
	"mercator-hq/drivetwin/pkg/perception"
	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/road"
)

// State is the policy state of the twin.
type State int

const (
	// StateNoPolicy means commands come from the autopilot.
	StateNoPolicy State = iota
	// StateRunningPolicy means a policy is producing commands.
	StateRunningPolicy
)

func (s State) String() string {
	if s == StateRunningPolicy {
		return "running_policy"
	}
	return "no_policy"
}

// Twin is the vehicle digital twin.
type Twin struct {
	config *Config
	logger *slog.Logger

	world     road.World
	ego       road.Vehicle
	perceiver *perception.Perceiver

	// vehicle is the per-episode copy of config.Vehicle that policies tune.
	vehicle *control.VehicleConfig
	model   *control.IDM

	laneChange *LaneChangeStrategy
	policy     *PolicyDrivenStrategy
	program    string

	targetSpeed float64
	targetLane  road.LaneIndex
	route       road.Route

	tick       uint64
	lastSource Source
	observers  []Observer
}

// New creates a twin. Reset binds it to a world before the first tick.
func New(config *Config, logger *slog.Logger) (*Twin, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Twin{
		config:  config,
		logger:  logger.With("component", "twin"),
		vehicle: config.Vehicle.Clone(),
	}
	t.model = control.NewIDM(t.vehicle, nil)

	if config.LaneChangeEnabled {
		t.laneChange = &LaneChangeStrategy{Advisor: lanechange.NewMOBIL(config.LaneChange, t.model)}
	}
	if config.PolicyDriven {
		engineCfg := config.Engine
		runner, err := engine.NewLuaEngine(&engineCfg, t, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create policy engine: %w", err)
		}
		t.policy = &PolicyDrivenStrategy{Runner: runner}
	}
	return t, nil
}

// WithAdvisor replaces the lane-change advisor and enables lane changes.
func (t *Twin) WithAdvisor(advisor lanechange.Advisor) *Twin {
	t.laneChange = &LaneChangeStrategy{Advisor: advisor}
	return t
}

// WithRunner replaces the policy runner and enables policies.
func (t *Twin) WithRunner(runner engine.Runner) *Twin {
	t.policy = &PolicyDrivenStrategy{Runner: runner}
	return t
}

// AddObserver registers an observer for twin events.
func (t *Twin) AddObserver(o Observer) {
	t.observers = append(t.observers, o)
}

// Reset binds the twin to ego in world and starts a new episode: targets
// follow the ego's current speed and lane, the route and the ignored stop
// signs are cleared, the vehicle configuration is restored and any running
// policy is dropped.
func (t *Twin) Reset(world road.World, ego road.Vehicle) {
	t.world = world
	t.ego = ego
	if t.perceiver == nil {
		t.perceiver = perception.New(world, ego)
	} else {
		t.perceiver.Reset(world, ego)
	}

	*t.vehicle = *t.config.Vehicle.Clone()
	t.model.Network = world.Network()

	t.targetSpeed = ego.Speed()
	t.targetLane = ego.LaneIndex()
	t.route = nil
	t.tick = 0
	t.lastSource = SourceNone
	t.resetPolicy()
}

// resetPolicy drops the running policy and makes sure a target lane is set.
func (t *Twin) resetPolicy() {
	if t.policy != nil {
		t.policy.Runner.Reset()
	}
	if t.targetLane.IsZero() && t.ego != nil {
		t.targetLane = t.ego.LaneIndex()
	}
}

// LoadProgram makes program the running policy. On failure the twin keeps
// driving on autopilot and the error is also reported as a load_failure event.
func (t *Twin) LoadProgram(ctx context.Context, program engine.Program) error {
	if t.policy == nil {
		return ErrPolicyDisabled
	}
	if t.ego == nil {
		return ErrNotBound
	}

	t.program = program.Name
	if err := t.policy.Runner.Load(ctx, program); err != nil {
		t.loadFailed(err)
		return err
	}
	if t.targetLane.IsZero() {
		err := &engine.LoadError{Program: program.Name, Stage: engine.StageValidate, Cause: ErrNoTargetLane}
		t.loadFailed(err)
		return err
	}

	t.logger.Info("policy loaded", "program", program.Name, "tick", t.tick)
	t.emit(Event{Kind: EventPolicyLoaded, Message: program.Name})
	return nil
}

func (t *Twin) loadFailed(err error) {
	t.logger.Error("policy load failed", "program", t.program, "error", err)
	t.resetPolicy()
	t.emit(Event{Kind: EventLoadFailure, Err: err})
}

// Act returns the command for the current tick.
func (t *Twin) Act(ctx context.Context) control.Command {
	if t.ego == nil {
		t.logger.Error("act called before reset")
		return control.Command{}
	}

	start := time.Now()
	t.tick++

	cmd, source := t.act(ctx)
	t.lastSource = source
	t.emit(Event{
		Kind:     EventTick,
		Command:  cmd,
		Source:   source,
		Duration: time.Since(start),
	})
	return cmd
}

func (t *Twin) act(ctx context.Context) (control.Command, Source) {
	if t.policy == nil {
		return t.Autopilot(), SourceAutopilot
	}

	cmd, wasActive, err := t.policy.Next(ctx)
	switch {
	case err == nil:
		return cmd, SourcePolicy
	case errors.Is(err, engine.ErrNoPolicy):
	case errors.Is(err, engine.ErrExhausted):
		if wasActive {
			t.logger.Debug("policy exhausted", "program", t.program, "tick", t.tick)
			t.emit(Event{Kind: EventPolicyExhausted})
		}
		t.resetPolicy()
	default:
		t.logger.Error("policy step failed", "program", t.program, "tick", t.tick, "error", err)
		t.emit(Event{Kind: EventStepFailure, Err: err})
		t.resetPolicy()
	}
	return t.Autopilot(), SourceAutopilot
}

// followRoad switches to the next lane once the ego is past the end of the
// target lane.
func (t *Twin) followRoad() {
	network := t.world.Network()
	lane, err := network.Lane(t.targetLane)
	if err != nil || !road.AfterEnd(lane, t.ego.Position()) {
		return
	}
	next, route := network.NextLane(t.targetLane, t.route, t.ego.Position())
	t.targetLane, t.route = next, route
}

// planRouteTo routes the ego from the end of its current lane to destination.
// Without a path the route is just the current lane.
func (t *Twin) planRouteTo(destination road.NodeID) {
	current := t.ego.LaneIndex()
	t.route = road.Route{current}

	path, err := t.world.Network().ShortestPath(current.To, destination)
	if err != nil {
		t.logger.Debug("no route to destination", "from", current.To, "to", destination, "error", err)
		return
	}
	for i := 0; i+1 < len(path); i++ {
		t.route = append(t.route, road.LaneIndex{From: path[i], To: path[i+1], Index: 0})
	}
	t.emit(Event{Kind: EventRoutePlanned, Lane: t.route[len(t.route)-1], Message: string(destination)})
}

func (t *Twin) emit(e Event) {
	if len(t.observers) == 0 {
		return
	}
	e.Tick = t.tick
	e.Time = time.Now()
	if e.Program == "" {
		e.Program = t.program
	}
	for _, o := range t.observers {
		o.OnEvent(e)
	}
}

// State returns the policy state.
func (t *Twin) State() State {
	if t.policy != nil && t.policy.Runner.Active() {
		return StateRunningPolicy
	}
	return StateNoPolicy
}

// TargetLane returns the lane the twin steers towards.
func (t *Twin) TargetLane() road.LaneIndex { return t.targetLane }

// Route returns the remaining planned route.
func (t *Twin) Route() road.Route { return append(road.Route(nil), t.route...) }

// Tick returns the number of Act calls since Reset.
func (t *Twin) Tick() uint64 { return t.tick }

// LastSource returns where the last command came from.
func (t *Twin) LastSource() Source { return t.lastSource }

// Program returns the name of the last loaded program.
func (t *Twin) Program() string { return t.program }

// VehicleConfig returns the live vehicle configuration.
func (t *Twin) VehicleConfig() control.VehicleConfig { return *t.vehicle }

// IgnoredStopSigns returns the ids of stop signs recovered from.
func (t *Twin) IgnoredStopSigns() []string {
	if t.perceiver == nil {
		return nil
	}
	return t.perceiver.Ignored()
}

// SpeedLimit returns the speed limit of the ego lane, or 0 if it is unknown.
func (t *Twin) SpeedLimit() float64 {
	if t.ego == nil {
		return 0
	}
	lane, err := t.world.Network().Lane(t.ego.LaneIndex())
	if err != nil {
		return 0
	}
	return lane.SpeedLimit()
}

// Close releases the policy engine.
func (t *Twin) Close() error {
	if t.policy == nil {
		return nil
	}
	return t.policy.Runner.Close()
}
