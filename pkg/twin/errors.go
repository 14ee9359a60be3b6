package twin

import "errors"

var (
	// ErrNotBound is returned when the twin has no world or ego vehicle.
	ErrNotBound = errors.New("twin is not bound to a world")

	// ErrPolicyDisabled is returned by LoadProgram when the twin was not
	// configured to run policies.
	ErrPolicyDisabled = errors.New("policy execution is disabled")

	// ErrInvalidLaneTarget marks a rejected target lane.
	ErrInvalidLaneTarget = errors.New("invalid target lane")

	// ErrNoTargetLane is the load failure raised when a program leaves the
	// twin without a target lane.
	ErrNoTargetLane = errors.New("no target lane after load")

	// ErrInvalidConfig indicates invalid twin configuration.
	ErrInvalidConfig = errors.New("invalid twin configuration")
)
