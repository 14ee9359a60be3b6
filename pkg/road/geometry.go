package road

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// Epsilon is the smallest magnitude NotZero lets through.
	Epsilon = 1e-2

	// VehicleLength is the nominal vehicle length used by lane membership tests [m].
	VehicleLength = 5.0

	// DefaultLaneWidth is the width of a lane when none is given [m].
	DefaultLaneWidth = 4.0
)

// NotZero replaces values within Epsilon of zero by a signed Epsilon.
func NotZero(x float64) float64 {
	if math.Abs(x) > Epsilon {
		return x
	}
	if x >= 0 {
		return Epsilon
	}
	return -Epsilon
}

// WrapToPi normalises an angle to (-π, π].
func WrapToPi(x float64) float64 {
	r := math.Mod(x+math.Pi, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	r -= math.Pi
	if r <= -math.Pi {
		return math.Pi
	}
	return r
}

// HeadingVector returns the unit vector pointing along heading.
func HeadingVector(heading float64) r2.Vec {
	return r2.Vec{X: math.Cos(heading), Y: math.Sin(heading)}
}
