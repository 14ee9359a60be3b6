// Package lanechange decides when the ego vehicle should move to an adjacent
// lane, using MOBIL (Minimizing Overall Braking Induced by Lane changes).
//
// A lane change is advised when it is safe, meaning the vehicle that would end
// up behind the ego does not have to brake harder than a safe limit, and when
// it pays off, meaning the ego's acceleration gain outweighs the politeness-
// weighted loss imposed on that follower plus a switching threshold.
package lanechange

import (
	"errors"
	"fmt"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/road"
)

// ErrInvalidConfig indicates invalid lane-change configuration.
var ErrInvalidConfig = errors.New("invalid lane change configuration")

// Advisor recommends a lane for the ego vehicle.
type Advisor interface {
	// ShouldChange reports whether moving to lane is both safe and worth it.
	ShouldChange(world road.World, ego road.Vehicle, targetSpeed float64, lane road.LaneIndex) bool

	// Choose returns the lane to move to and true, or false to stay.
	Choose(world road.World, ego road.Vehicle, targetSpeed float64) (road.LaneIndex, bool)
}

var _ Advisor = (*MOBIL)(nil)

// Config holds the MOBIL parameters.
type Config struct {
	// Politeness weighs the follower's braking against the ego's gain.
	Politeness float64 `yaml:"politeness"`

	// MaxSafeDeceleration is the hardest braking the new follower may be
	// forced into [m/s²].
	MaxSafeDeceleration float64 `yaml:"max_safe_deceleration"`

	// Threshold is the minimum net acceleration gain for a change [m/s²].
	Threshold float64 `yaml:"threshold"`
}

// DefaultConfig returns the default MOBIL parameters.
func DefaultConfig() Config {
	return Config{
		Politeness:          0.2,
		MaxSafeDeceleration: 10,
		Threshold:           0.1,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Politeness < 0 {
		return fmt.Errorf("%w: politeness cannot be negative", ErrInvalidConfig)
	}
	if c.MaxSafeDeceleration <= 0 {
		return fmt.Errorf("%w: max safe deceleration must be positive", ErrInvalidConfig)
	}
	return nil
}

// MOBIL is the MOBIL lane-change advisor.
type MOBIL struct {
	cfg   Config
	model control.AccelerationModel
}

// NewMOBIL creates an advisor that predicts accelerations with model.
func NewMOBIL(cfg Config, model control.AccelerationModel) *MOBIL {
	return &MOBIL{cfg: cfg, model: model}
}

// Choose evaluates the side lanes of the ego lane in enumeration order and
// returns the first one that passes ShouldChange.
func (m *MOBIL) Choose(world road.World, ego road.Vehicle, targetSpeed float64) (road.LaneIndex, bool) {
	for _, lane := range world.Network().SideLanes(ego.LaneIndex()) {
		if m.ShouldChange(world, ego, targetSpeed, lane) {
			return lane, true
		}
	}
	return road.LaneIndex{}, false
}

// ShouldChange reports whether moving the ego to lane satisfies both the
// safety and the incentive criterion.
func (m *MOBIL) ShouldChange(world road.World, ego road.Vehicle, targetSpeed float64, lane road.LaneIndex) bool {
	newFront, newBack := world.NeighbourVehicles(ego, lane)
	oldFront, _ := world.NeighbourVehicles(ego, road.LaneIndex{})

	// Safety criterion: acc'(B') after the ego cuts in.
	var accNewBack, accPrimeNewBack float64
	if newBack != nil {
		accPrimeNewBack = m.model.Acceleration(newBack, ego, desiredSpeed(newBack))
		if accPrimeNewBack <= -m.cfg.MaxSafeDeceleration {
			return false
		}
		accNewBack = m.model.Acceleration(newBack, asObject(newFront), desiredSpeed(newBack))
	}

	// Incentive criterion: acc'(M') - acc(M) > p·(acc(B') - acc'(B')) + a_thr.
	accSelf := m.model.Acceleration(ego, asObject(oldFront), targetSpeed)
	accPrimeSelf := m.model.Acceleration(ego, asObject(newFront), targetSpeed)
	return accPrimeSelf-accSelf > m.cfg.Politeness*(accNewBack-accPrimeNewBack)+m.cfg.Threshold
}

// desiredSpeed is the speed another vehicle is assumed to pursue.
func desiredSpeed(v road.Vehicle) float64 {
	if d, ok := v.(road.Driver); ok {
		return d.TargetSpeed()
	}
	return v.Speed()
}

// asObject keeps a nil Vehicle a nil Object.
func asObject(v road.Vehicle) road.Object {
	if v == nil {
		return nil
	}
	return v
}
