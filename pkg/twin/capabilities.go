package twin

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/road"
)

var _ engine.Capabilities = (*Twin)(nil)

func (t *Twin) EgoVehicle() road.Vehicle { return t.ego }

func (t *Twin) TargetSpeed() float64 { return t.targetSpeed }

func (t *Twin) DesiredTimeHeadway() float64 { return t.vehicle.DesiredTimeHeadway }

// SetTargetSpeed sets the IDM target speed. Non-finite values are ignored.
func (t *Twin) SetTargetSpeed(speed float64) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		t.logger.Warn("ignoring non-finite target speed", "speed", speed)
		return
	}
	t.targetSpeed = speed
}

// SetTargetLane sets the lane to steer towards. Malformed or unknown lanes
// are rejected with a warning and the previous target is kept.
func (t *Twin) SetTargetLane(lane road.LaneIndex) {
	if err := t.checkLane(lane); err != nil {
		t.logger.Warn("rejected target lane", "lane", lane.String(), "error", err)
		t.emit(Event{Kind: EventInvalidLaneTarget, Lane: lane, Err: err})
		return
	}
	if lane != t.targetLane {
		t.emit(Event{Kind: EventLaneChange, Lane: lane, Message: "policy"})
	}
	t.targetLane = lane
}

func (t *Twin) checkLane(lane road.LaneIndex) error {
	if lane.IsZero() || !lane.Valid() {
		return fmt.Errorf("%w: malformed lane index", ErrInvalidLaneTarget)
	}
	if _, err := t.world.Network().Lane(lane); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLaneTarget, err)
	}
	return nil
}

// SetDesiredTimeHeadway sets the IDM time headway, clamped to
// [control.MinTimeHeadway, control.MaxTimeHeadway].
func (t *Twin) SetDesiredTimeHeadway(tau float64) {
	t.vehicle.SetDesiredTimeHeadway(tau)
}

func (t *Twin) vehicleOrEgo(v road.Vehicle) road.Vehicle {
	if v == nil {
		return t.ego
	}
	return v
}

func (t *Twin) SpeedOf(v road.Vehicle) float64 { return t.vehicleOrEgo(v).Speed() }

func (t *Twin) LaneOf(v road.Vehicle) road.LaneIndex { return t.vehicleOrEgo(v).LaneIndex() }

func (t *Twin) DetectFrontVehicleIn(lane road.LaneIndex, distance float64) road.Vehicle {
	return t.perceiver.FrontIn(lane, distance)
}

func (t *Twin) DetectRearVehicleIn(lane road.LaneIndex, distance float64) road.Vehicle {
	return t.perceiver.RearIn(lane, distance)
}

// DistanceBetweenVehicles returns how far a is ahead of b, measured on a's
// lane. It is negative while b is ahead.
func (t *Twin) DistanceBetweenVehicles(a, b road.Vehicle) float64 {
	return -road.LaneDistance(t.world.Network(), t.vehicleOrEgo(a), t.vehicleOrEgo(b))
}

func (t *Twin) LeftLane(v road.Vehicle, lane road.LaneIndex) (road.LaneIndex, bool) {
	return t.sideLane(v, lane, -1)
}

func (t *Twin) RightLane(v road.Vehicle, lane road.LaneIndex) (road.LaneIndex, bool) {
	return t.sideLane(v, lane, +1)
}

// sideLane returns the lane offset by step from lane, or from v's lane when
// lane is zero. It reports false when no such lane exists.
func (t *Twin) sideLane(v road.Vehicle, lane road.LaneIndex, step int) (road.LaneIndex, bool) {
	if lane.IsZero() {
		lane = t.vehicleOrEgo(v).LaneIndex()
	}
	count := t.world.Network().LaneCount(lane.From, lane.To)
	if count == 0 {
		return road.LaneIndex{}, false
	}
	side := lane
	side.Index = lo.Clamp(lane.Index+step, 0, count-1)
	if side.Index == lane.Index {
		return road.LaneIndex{}, false
	}
	return side, true
}

func (t *Twin) LeftToRightCrossTrafficLanes() []road.LaneIndex {
	return append([]road.LaneIndex(nil), t.config.Intersection.LeftToRight...)
}

func (t *Twin) RightToLeftCrossTrafficLanes() []road.LaneIndex {
	return append([]road.LaneIndex(nil), t.config.Intersection.RightToLeft...)
}

func (t *Twin) DetectStopSignAhead() float64 { return t.perceiver.StopSignAhead() }

// Autopilot computes the default command: follow the road, apply the
// lane-change strategy, then steer and accelerate towards the targets.
func (t *Twin) Autopilot() control.Command {
	t.followRoad()

	if t.laneChange != nil {
		if lane, ok := t.laneChange.Retarget(t.world, t.ego, t.targetLane, t.targetSpeed); ok {
			t.logger.Debug("lane change advised", "from", t.targetLane.String(), "to", lane.String())
			t.targetLane = lane
			t.emit(Event{Kind: EventLaneChange, Lane: lane, Message: "mobil"})
		}
	}

	var steering float64
	if lane, err := t.world.Network().Lane(t.targetLane); err == nil {
		steering = control.Steering(t.vehicle, t.ego, lane)
	}
	acceleration := t.model.Acceleration(t.ego, t.perceiver.FrontOrStopSign(), t.targetSpeed)
	return control.Command{Acceleration: acceleration, Steering: steering}.Clipped()
}

// RecoverFromStop releases the stop sign ahead once the ego has stopped.
func (t *Twin) RecoverFromStop() {
	if t.ego.Speed() >= t.config.StoppedSpeed {
		return
	}
	sign, ok := t.perceiver.FrontOrStopSign().(*road.StopSign)
	if !ok {
		return
	}
	t.perceiver.Ignore(sign)
	t.logger.Info("recovered from stop", "stop_sign", sign.ID, "tick", t.tick)
	t.emit(Event{Kind: EventStopRecovered, Message: sign.ID})
}

// IsSafeEnter reports whether the ego can enter lane without forcing itself
// or the vehicle behind in that lane to brake harder than safeDeceleration.
func (t *Twin) IsSafeEnter(lane road.LaneIndex, safeDeceleration float64) bool {
	if lane.IsZero() {
		return false
	}
	front, rear := t.perceiver.Neighbours(lane)
	if front != nil {
		if t.model.Acceleration(t.ego, front, t.ego.Speed()) < -safeDeceleration {
			return false
		}
	}
	if rear != nil {
		if t.model.Acceleration(rear, t.ego, rear.Speed()) < -safeDeceleration {
			return false
		}
	}
	return true
}

func (t *Twin) TurnLeftAtNextIntersection() { t.planRouteTo(t.config.Intersection.TurnLeft) }

func (t *Twin) TurnRightAtNextIntersection() { t.planRouteTo(t.config.Intersection.TurnRight) }

func (t *Twin) GoStraightAtNextIntersection() { t.planRouteTo(t.config.Intersection.Straight) }

// Say forwards a policy message to the log and observers.
func (t *Twin) Say(text string) {
	t.logger.Info("policy says", "program", t.program, "text", text)
	t.emit(Event{Kind: EventSay, Message: text})
}
