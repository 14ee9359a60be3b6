package twin

import (
	"fmt"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/lanechange"
	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/road"
)

// DefaultStoppedSpeed is the speed under which recover_from_stop may release
// a stop sign [m/s].
const DefaultStoppedSpeed = 1.0

// Config configures a Twin.
type Config struct {
	// Vehicle holds the control gains and IDM parameters. Each Reset starts
	// from a copy, so runtime changes by policies last one episode.
	Vehicle control.VehicleConfig `yaml:"vehicle"`

	// LaneChangeEnabled turns on MOBIL lane changes in the autopilot.
	LaneChangeEnabled bool `yaml:"lane_change_enabled"`

	// LaneChange holds the MOBIL parameters.
	LaneChange lanechange.Config `yaml:"lane_change"`

	// PolicyDriven turns on the policy engine.
	PolicyDriven bool `yaml:"policy_driven"`

	// Engine configures the policy engine.
	Engine engine.EngineConfig `yaml:"engine"`

	// StoppedSpeed is the recover_from_stop speed threshold [m/s].
	StoppedSpeed float64 `yaml:"stopped_speed"`

	// Intersection names the turn destinations and cross-traffic lanes.
	Intersection IntersectionConfig `yaml:"intersection"`
}

// IntersectionConfig describes the intersection the route capabilities refer to.
type IntersectionConfig struct {
	TurnLeft  road.NodeID `yaml:"turn_left"`
	Straight  road.NodeID `yaml:"straight"`
	TurnRight road.NodeID `yaml:"turn_right"`

	// LeftToRight and RightToLeft are the lanes crossing the ego's path.
	LeftToRight []road.LaneIndex `yaml:"left_to_right"`
	RightToLeft []road.LaneIndex `yaml:"right_to_left"`
}

// DefaultIntersectionConfig returns the layout of the reference four-way
// intersection, with exits o1 (left), o2 (straight) and o3 (right).
func DefaultIntersectionConfig() IntersectionConfig {
	return IntersectionConfig{
		TurnLeft:  "o1",
		Straight:  "o2",
		TurnRight: "o3",
		LeftToRight: []road.LaneIndex{
			{From: "o1", To: "ir1", Index: 0},
			{From: "ir1", To: "il3", Index: 0},
			{From: "il3", To: "o3", Index: 0},
		},
		RightToLeft: []road.LaneIndex{
			{From: "il1", To: "o1", Index: 0},
			{From: "ir3", To: "il1", Index: 0},
			{From: "o3", To: "ir3", Index: 0},
		},
	}
}

// DefaultConfig returns a policy-driven twin without MOBIL.
func DefaultConfig() *Config {
	return &Config{
		Vehicle:      *control.DefaultVehicleConfig(),
		LaneChange:   lanechange.DefaultConfig(),
		PolicyDriven: true,
		Engine:       *engine.DefaultEngineConfig(),
		StoppedSpeed: DefaultStoppedSpeed,
		Intersection: DefaultIntersectionConfig(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vehicle.Validate(); err != nil {
		return err
	}
	if c.LaneChangeEnabled {
		if err := c.LaneChange.Validate(); err != nil {
			return err
		}
	}
	if c.PolicyDriven {
		if err := c.Engine.Validate(); err != nil {
			return err
		}
	}
	if c.StoppedSpeed <= 0 {
		return fmt.Errorf("%w: stopped speed must be positive", ErrInvalidConfig)
	}
	for _, lane := range append(append([]road.LaneIndex{}, c.Intersection.LeftToRight...), c.Intersection.RightToLeft...) {
		if !lane.Valid() {
			return fmt.Errorf("%w: cross-traffic lane %v", ErrInvalidConfig, lane)
		}
	}
	return nil
}
