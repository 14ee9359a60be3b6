package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Controller time constants [s].
const (
	TauAcceleration = 0.6
	TauHeading      = 0.2
	TauLateral      = 0.6

	// PursuitTau is the look-ahead time used to read the lane heading.
	PursuitTau = 0.5 * TauHeading
)

// MaxSteeringAngle bounds every steering command [rad].
const MaxSteeringAngle = math.Pi / 3

// Time headway bounds enforced by SetDesiredTimeHeadway [s].
const (
	MinTimeHeadway = 0.01
	MaxTimeHeadway = 2.0
)

// ErrInvalidConfig indicates invalid vehicle configuration.
var ErrInvalidConfig = errors.New("invalid vehicle configuration")

// VehicleConfig holds the control gains and IDM parameters of the ego vehicle.
type VehicleConfig struct {
	// KpAcceleration is the longitudinal speed control gain [1/s].
	KpAcceleration float64 `yaml:"kp_acceleration"`

	// KpLateral is the lateral position control gain [1/s].
	KpLateral float64 `yaml:"kp_lateral"`

	// KpHeading is the heading control gain [1/s].
	KpHeading float64 `yaml:"kp_heading"`

	// MaxAcceleration is the desired maximum acceleration a [m/s²].
	MaxAcceleration float64 `yaml:"max_acceleration"`

	// ComfortableDeceleration is the comfortable braking b, a positive number [m/s²].
	ComfortableDeceleration float64 `yaml:"comfortable_deceleration"`

	// AccelerationExponent is the free-road exponent δ.
	AccelerationExponent float64 `yaml:"acceleration_exponent"`

	// DesiredTimeHeadway is τ, the minimum time gap to the vehicle in front [s].
	// Use SetDesiredTimeHeadway to change it at runtime.
	DesiredTimeHeadway float64 `yaml:"desired_time_headway"`

	// MinimumSpacing is d0, the jam distance the vehicle keeps when stopped [m].
	MinimumSpacing float64 `yaml:"minimum_spacing"`
}

// DefaultVehicleConfig returns the configuration the twin starts every episode with.
func DefaultVehicleConfig() *VehicleConfig {
	return &VehicleConfig{
		KpAcceleration:          1 / TauAcceleration,
		KpLateral:               1 / TauLateral,
		KpHeading:               1 / TauHeading,
		MaxAcceleration:         6.0,
		ComfortableDeceleration: 6.0,
		AccelerationExponent:    4.0,
		DesiredTimeHeadway:      1.5,
		MinimumSpacing:          6.0,
	}
}

// Clone returns a copy of c.
func (c *VehicleConfig) Clone() *VehicleConfig {
	cp := *c
	return &cp
}

// SetDesiredTimeHeadway stores tau clamped to [MinTimeHeadway, MaxTimeHeadway].
func (c *VehicleConfig) SetDesiredTimeHeadway(tau float64) {
	if math.IsNaN(tau) {
		return
	}
	c.DesiredTimeHeadway = lo.Clamp(tau, MinTimeHeadway, MaxTimeHeadway)
}

// Validate checks that every parameter is usable by the control laws.
func (c *VehicleConfig) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"kp_acceleration", c.KpAcceleration},
		{"kp_lateral", c.KpLateral},
		{"kp_heading", c.KpHeading},
		{"max_acceleration", c.MaxAcceleration},
		{"comfortable_deceleration", c.ComfortableDeceleration},
		{"acceleration_exponent", c.AccelerationExponent},
	}
	for _, p := range positive {
		if !(p.value > 0) {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, p.name)
		}
	}
	if c.DesiredTimeHeadway < MinTimeHeadway || c.DesiredTimeHeadway > MaxTimeHeadway {
		return fmt.Errorf("%w: desired_time_headway must be within [%v, %v]", ErrInvalidConfig, MinTimeHeadway, MaxTimeHeadway)
	}
	if c.MinimumSpacing < 0 {
		return fmt.Errorf("%w: minimum_spacing cannot be negative", ErrInvalidConfig)
	}
	return nil
}
