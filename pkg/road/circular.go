package road

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// CircularLane is a lane along an arc, used for turns inside intersections.
type CircularLane struct {
	center     r2.Vec
	radius     float64
	startPhase float64
	endPhase   float64
	// +1 when the phase grows along the lane, -1 otherwise.
	direction  float64
	width      float64
	speedLimit float64
	lineTypes  [2]LineType
}

// NewCircularLane creates an arc lane around center from startPhase to
// endPhase [rad]. clockwise selects the direction of increasing phase.
func NewCircularLane(center r2.Vec, radius, startPhase, endPhase float64, clockwise bool, width, speedLimit float64) *CircularLane {
	dir := 1.0
	if !clockwise {
		dir = -1.0
	}
	return &CircularLane{
		center:     center,
		radius:     radius,
		startPhase: startPhase,
		endPhase:   endPhase,
		direction:  dir,
		width:      width,
		speedLimit: speedLimit,
		lineTypes:  [2]LineType{LineNone, LineNone},
	}
}

// WithLineTypes sets the boundary markings.
func (l *CircularLane) WithLineTypes(left, right LineType) *CircularLane {
	l.lineTypes = [2]LineType{left, right}
	return l
}

func (l *CircularLane) Position(s, lat float64) r2.Vec {
	phi := l.direction*s/l.radius + l.startPhase
	r := l.radius - lat*l.direction
	return r2.Add(l.center, r2.Scale(r, r2.Vec{X: math.Cos(phi), Y: math.Sin(phi)}))
}

func (l *CircularLane) LocalCoordinates(pos r2.Vec) (float64, float64) {
	delta := r2.Sub(pos, l.center)
	phi := math.Atan2(delta.Y, delta.X)
	phi = l.startPhase + WrapToPi(phi-l.startPhase)
	r := r2.Norm(delta)
	s := l.direction * (phi - l.startPhase) * l.radius
	lat := l.direction * (l.radius - r)
	return s, lat
}

func (l *CircularLane) HeadingAt(s float64) float64 {
	phi := l.direction*s/l.radius + l.startPhase
	return phi + math.Pi/2*l.direction
}

func (l *CircularLane) WidthAt(float64) float64 { return l.width }

func (l *CircularLane) Length() float64 {
	return l.radius * (l.endPhase - l.startPhase) * l.direction
}

func (l *CircularLane) SpeedLimit() float64 { return l.speedLimit }

func (l *CircularLane) LineTypes() [2]LineType { return l.lineTypes }
