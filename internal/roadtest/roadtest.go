// Package roadtest provides road fixtures shared by package tests.
package roadtest

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"mercator-hq/drivetwin/pkg/road"
)

// Vehicle is a settable road.Driver.
type Vehicle struct {
	Pos    r2.Vec
	Yaw    float64
	V      float64
	Target float64
	Len    float64
	Lane   road.LaneIndex
}

func (v *Vehicle) Position() r2.Vec          { return v.Pos }
func (v *Vehicle) Velocity() r2.Vec          { return r2.Scale(v.V, v.Direction()) }
func (v *Vehicle) Heading() float64          { return v.Yaw }
func (v *Vehicle) Speed() float64            { return v.V }
func (v *Vehicle) Direction() r2.Vec         { return road.HeadingVector(v.Yaw) }
func (v *Vehicle) LaneIndex() road.LaneIndex { return v.Lane }
func (v *Vehicle) TargetSpeed() float64      { return v.Target }

func (v *Vehicle) Length() float64 {
	if v.Len == 0 {
		return road.VehicleLength
	}
	return v.Len
}

// HighwayLane returns lane i of the edge built by Highway.
func HighwayLane(i int) road.LaneIndex {
	return road.LaneIndex{From: "a", To: "b", Index: i}
}

// Highway builds a straight road "a" -> "b" along the x axis with the given
// number of lanes. Lane i is centred on y = i * DefaultLaneWidth.
func Highway(lanes int, length float64) *road.Graph {
	g := road.NewGraph()
	for i := 0; i < lanes; i++ {
		y := float64(i) * road.DefaultLaneWidth
		g.AddLane("a", "b", road.NewStraightLane(r2.Vec{Y: y}, r2.Vec{X: length, Y: y}, road.DefaultLaneWidth, 30))
	}
	return g
}

// OnHighway places a vehicle at x on lane i of a Highway road.
func OnHighway(i int, x, speed float64) *Vehicle {
	return &Vehicle{
		Pos:    r2.Vec{X: x, Y: float64(i) * road.DefaultLaneWidth},
		V:      speed,
		Target: speed,
		Lane:   HighwayLane(i),
	}
}

// AlmostEqual reports whether a and b differ by less than tol.
func AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
