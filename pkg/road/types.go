package road

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// NodeID names a node of the road graph.
type NodeID string

// LaneIndex addresses a lane: the edge it belongs to and its position among
// the parallel lanes of that edge. Index 0 is the leftmost lane.
//
// The zero value means "no lane".
type LaneIndex struct {
	From  NodeID
	To    NodeID
	Index int
}

// IsZero reports whether l is the zero LaneIndex.
func (l LaneIndex) IsZero() bool {
	return l == LaneIndex{}
}

// Valid reports whether l is well formed. It does not check that the lane exists.
func (l LaneIndex) Valid() bool {
	return l.From != "" && l.To != "" && l.Index >= 0
}

// SameRoad reports whether l and o lie on the same edge.
func (l LaneIndex) SameRoad(o LaneIndex) bool {
	return l.From == o.From && l.To == o.To
}

// String returns the lane index as a (from, to, index) triple.
func (l LaneIndex) String() string {
	return fmt.Sprintf("(%s, %s, %d)", l.From, l.To, l.Index)
}

// Route is an ordered sequence of lanes the vehicle intends to follow.
type Route []LaneIndex

// Object is anything placed on the road: vehicles, stop signs, obstacles.
type Object interface {
	Position() r2.Vec
	Velocity() r2.Vec
}

// Vehicle is a moving road object.
type Vehicle interface {
	Object

	// Heading is the yaw angle [rad].
	Heading() float64

	// Speed is the signed longitudinal speed [m/s].
	Speed() float64

	// Direction is the unit vector along Heading.
	Direction() r2.Vec

	// Length is the vehicle length [m].
	Length() float64

	// LaneIndex is the lane the vehicle currently occupies.
	LaneIndex() LaneIndex
}

// Driver is a vehicle that pursues a target speed of its own.
type Driver interface {
	Vehicle
	TargetSpeed() float64
}

// StopSign is a static road object that forces a stop.
type StopSign struct {
	// ID is stable for the lifetime of the episode.
	ID  string
	Pos r2.Vec
}

// Position returns the stop sign position.
func (s *StopSign) Position() r2.Vec { return s.Pos }

// Velocity is always zero.
func (s *StopSign) Velocity() r2.Vec { return r2.Vec{} }
