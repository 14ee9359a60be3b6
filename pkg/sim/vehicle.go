package sim

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/road"
)

const (
	// VehicleWidth is the width used for collision checks [m].
	VehicleWidth = 2.0

	// MaxSpeed and MinSpeed bound the integrated speed [m/s].
	MaxSpeed = 40.0
	MinSpeed = -40.0
)

// Vehicle is a kinematic bicycle. It implements road.Driver.
type Vehicle struct {
	id          string
	pos         r2.Vec
	heading     float64
	speed       float64
	length      float64
	targetSpeed float64
	lane        road.LaneIndex

	crashed bool
	onRoad  bool
}

// NewVehicle creates a vehicle of nominal length at pos.
func NewVehicle(id string, pos r2.Vec, heading, speed float64) *Vehicle {
	return &Vehicle{
		id:          id,
		pos:         pos,
		heading:     heading,
		speed:       speed,
		length:      road.VehicleLength,
		targetSpeed: speed,
		onRoad:      true,
	}
}

func (v *Vehicle) ID() string                { return v.id }
func (v *Vehicle) Position() r2.Vec          { return v.pos }
func (v *Vehicle) Velocity() r2.Vec          { return r2.Scale(v.speed, v.Direction()) }
func (v *Vehicle) Heading() float64          { return v.heading }
func (v *Vehicle) Speed() float64            { return v.speed }
func (v *Vehicle) Direction() r2.Vec         { return road.HeadingVector(v.heading) }
func (v *Vehicle) Length() float64           { return v.length }
func (v *Vehicle) LaneIndex() road.LaneIndex { return v.lane }
func (v *Vehicle) TargetSpeed() float64      { return v.targetSpeed }

// Crashed reports whether the vehicle has collided.
func (v *Vehicle) Crashed() bool { return v.crashed }

// OnRoad reports whether the vehicle is inside its lane.
func (v *Vehicle) OnRoad() bool { return v.onRoad }

// Step integrates the bicycle model over dt. A crashed vehicle brakes to a
// standstill and keeps its heading.
func (v *Vehicle) Step(cmd control.Command, dt float64) {
	if v.crashed {
		cmd = control.Command{Acceleration: -v.speed / dt}
	}
	cmd = cmd.Clipped()

	beta := math.Atan(0.5 * math.Tan(cmd.Steering))
	velocity := r2.Scale(v.speed, road.HeadingVector(v.heading+beta))
	v.pos = r2.Add(v.pos, r2.Scale(dt, velocity))
	v.heading = road.WrapToPi(v.heading + v.speed*math.Sin(beta)/(v.length/2)*dt)
	v.speed = lo.Clamp(v.speed+cmd.Acceleration*dt, MinSpeed, MaxSpeed)
}

// updateLane snaps the vehicle to the closest lane and refreshes OnRoad.
func (v *Vehicle) updateLane(n road.Network) {
	idx, err := n.ClosestLaneIndex(v.pos, v.heading)
	if err != nil {
		v.onRoad = false
		return
	}
	v.lane = idx
	lane, err := n.Lane(idx)
	v.onRoad = err == nil && road.OnLane(lane, v.pos, 0)
}

// collides reports whether the footprints of v and o overlap.
func (v *Vehicle) collides(o *Vehicle) bool {
	d := r2.Sub(o.pos, v.pos)
	dir := v.Direction()
	along := math.Abs(r2.Dot(d, dir))
	across := math.Abs(dir.X*d.Y - dir.Y*d.X)
	return along < (v.length+o.length)/2 && across < VehicleWidth
}
