package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"mercator-hq/drivetwin/pkg/road"
)

// NoGap is returned by DesiredGap when there is nothing in front.
const NoGap = -1.0

// AccelerationModel computes a longitudinal acceleration for a vehicle
// following an object. A nil front object means a free road.
type AccelerationModel interface {
	Acceleration(ego road.Vehicle, front road.Object, targetSpeed float64) float64
}

// IDM is the Intelligent Driver Model.
type IDM struct {
	// Config is read on every call so runtime changes apply immediately.
	Config *VehicleConfig

	// Network resolves lanes for gap measurements.
	Network road.Network
}

// NewIDM creates an IDM bound to cfg and network.
func NewIDM(cfg *VehicleConfig, network road.Network) *IDM {
	return &IDM{Config: cfg, Network: network}
}

// Acceleration returns the IDM acceleration of ego towards targetSpeed behind front.
//
// A stop sign in front is treated as a stationary leader whose desired gap
// is reduced by half the minimum spacing, so the vehicle stops close to it.
func (m *IDM) Acceleration(ego road.Vehicle, front road.Object, targetSpeed float64) float64 {
	cfg := m.Config
	speed := math.Max(ego.Speed(), 0)
	accel := cfg.MaxAcceleration * (1 - math.Pow(speed/math.Abs(road.NotZero(targetSpeed)), cfg.AccelerationExponent))
	if front == nil {
		return accel
	}

	d := road.LaneDistance(m.Network, ego, front)
	if math.IsNaN(d) {
		return accel
	}
	dStar := m.DesiredGap(ego, front, 0)
	if _, ok := front.(*road.StopSign); ok {
		dStar -= cfg.MinimumSpacing / 2
	}
	ratio := dStar / road.NotZero(d)
	return accel - cfg.MaxAcceleration*ratio*ratio
}

// DesiredGap returns the distance headway d* of ego behind front. A tau of
// zero or less uses the configured desired time headway. It returns NoGap when
// front is nil.
func (m *IDM) DesiredGap(ego road.Vehicle, front road.Object, tau float64) float64 {
	if front == nil {
		return NoGap
	}
	cfg := m.Config
	if tau <= 0 {
		tau = cfg.DesiredTimeHeadway
	}
	ab := cfg.MaxAcceleration * cfg.ComfortableDeceleration
	dv := r2.Dot(r2.Sub(ego.Velocity(), front.Velocity()), ego.Direction())
	return cfg.MinimumSpacing + ego.Speed()*tau + ego.Speed()*dv/(2*math.Sqrt(ab))
}
