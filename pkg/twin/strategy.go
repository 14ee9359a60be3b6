package twin

import (
	"context"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/lanechange"
	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/road"
)

// LaneChangeStrategy lets an advisor pick the autopilot's target lane.
type LaneChangeStrategy struct {
	Advisor lanechange.Advisor
}

// Retarget returns a new target lane, or false to keep the current one.
// It only advises while the ego is settled in its target lane, so a lane
// change in progress is never overridden.
func (s *LaneChangeStrategy) Retarget(world road.World, ego road.Vehicle, target road.LaneIndex, targetSpeed float64) (road.LaneIndex, bool) {
	if target != ego.LaneIndex() {
		return road.LaneIndex{}, false
	}
	lane, ok := s.Advisor.Choose(world, ego, targetSpeed)
	if !ok || lane == target {
		return road.LaneIndex{}, false
	}
	return lane, true
}

// PolicyDrivenStrategy pulls commands from a policy runner.
type PolicyDrivenStrategy struct {
	Runner engine.Runner
}

// Next steps the runner once. wasActive reports whether a policy was
// producing commands before the step.
func (s *PolicyDrivenStrategy) Next(ctx context.Context) (cmd control.Command, wasActive bool, err error) {
	wasActive = s.Runner.Active()
	cmd, err = s.Runner.Step(ctx)
	return cmd, wasActive, err
}
