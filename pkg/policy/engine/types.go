package engine

import (
	"context"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/road"
)

// Program is the source text of a policy.
type Program struct {
	// Name identifies the program in logs and events.
	Name string `json:"name" yaml:"name"`

	// ReusedCode holds previously accepted definitions. It runs first.
	ReusedCode string `json:"reused_code" yaml:"reused_code"`

	// NewCode is expected to define the global policy function. It runs second.
	NewCode string `json:"new_code" yaml:"new_code"`
}

// Size returns the combined source length in bytes.
func (p Program) Size() int {
	return len(p.ReusedCode) + len(p.NewCode)
}

// Source provides programs to load.
type Source interface {
	// Load returns the current program.
	Load(ctx context.Context) (Program, error)
}

// Capabilities is the twin surface exposed to policy code. Every method is
// called synchronously on the goroutine running Step or Load.
type Capabilities interface {
	// Ego and state getters.
	EgoVehicle() road.Vehicle
	TargetSpeed() float64
	DesiredTimeHeadway() float64

	// Setters. SetTargetLane receives the zero LaneIndex for malformed input
	// and is expected to reject it.
	SetTargetSpeed(speed float64)
	SetTargetLane(lane road.LaneIndex)
	SetDesiredTimeHeadway(tau float64)

	// Perception. A nil vehicle or zero lane means the ego or its lane.
	SpeedOf(v road.Vehicle) float64
	LaneOf(v road.Vehicle) road.LaneIndex
	DetectFrontVehicleIn(lane road.LaneIndex, distance float64) road.Vehicle
	DetectRearVehicleIn(lane road.LaneIndex, distance float64) road.Vehicle
	DistanceBetweenVehicles(a, b road.Vehicle) float64
	LeftLane(v road.Vehicle, lane road.LaneIndex) (road.LaneIndex, bool)
	RightLane(v road.Vehicle, lane road.LaneIndex) (road.LaneIndex, bool)
	LeftToRightCrossTrafficLanes() []road.LaneIndex
	RightToLeftCrossTrafficLanes() []road.LaneIndex
	DetectStopSignAhead() float64

	// Control.
	Autopilot() control.Command
	RecoverFromStop()
	IsSafeEnter(lane road.LaneIndex, safeDeceleration float64) bool

	// Route.
	TurnLeftAtNextIntersection()
	TurnRightAtNextIntersection()
	GoStraightAtNextIntersection()

	// Say forwards a user-facing message.
	Say(text string)
}
