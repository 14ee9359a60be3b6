package control

import (
	"math"

	"github.com/samber/lo"

	"mercator-hq/drivetwin/pkg/road"
)

// Command is the control output of one tick.
type Command struct {
	// Acceleration [m/s²].
	Acceleration float64 `json:"acceleration"`

	// Steering is the front wheel angle [rad].
	Steering float64 `json:"steering"`
}

// Clipped returns c with steering bounded to ±MaxSteeringAngle.
func (c Command) Clipped() Command {
	c.Steering = lo.Clamp(c.Steering, -MaxSteeringAngle, MaxSteeringAngle)
	return c
}

// Steering returns the steering angle that brings ego onto the centre of lane.
func Steering(cfg *VehicleConfig, ego road.Vehicle, lane road.Lane) float64 {
	s, lat := lane.LocalCoordinates(ego.Position())
	speed := ego.Speed()
	futureHeading := lane.HeadingAt(s + speed*PursuitTau)

	// Lateral position to lateral speed.
	lateralSpeed := -cfg.KpLateral * lat

	// Lateral speed to heading correction.
	headingCorrection := math.Asin(lo.Clamp(lateralSpeed/math.Abs(road.NotZero(speed)), -1, 1))
	headingRef := futureHeading + lo.Clamp(headingCorrection, -math.Pi/4, math.Pi/4)

	// Heading error to heading rate.
	headingRate := cfg.KpHeading * road.WrapToPi(headingRef-ego.Heading())

	// Heading rate to steering angle through the bicycle model.
	slip := math.Asin(lo.Clamp(ego.Length()/2/math.Abs(road.NotZero(speed))*headingRate, -1, 1))
	steering := math.Atan(2 * math.Tan(slip))
	return lo.Clamp(steering, -MaxSteeringAngle, MaxSteeringAngle)
}

// SpeedControl returns the proportional acceleration towards target.
func SpeedControl(cfg *VehicleConfig, ego road.Vehicle, target float64) float64 {
	return cfg.KpAcceleration * (target - ego.Speed())
}
