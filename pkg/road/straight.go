package road

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// StraightLane is a lane along a straight segment.
type StraightLane struct {
	start      r2.Vec
	end        r2.Vec
	width      float64
	speedLimit float64
	lineTypes  [2]LineType

	heading   float64
	length    float64
	direction r2.Vec
	lateral   r2.Vec
}

// NewStraightLane creates a lane running from start to end.
func NewStraightLane(start, end r2.Vec, width, speedLimit float64) *StraightLane {
	d := r2.Sub(end, start)
	l := &StraightLane{
		start:      start,
		end:        end,
		width:      width,
		speedLimit: speedLimit,
		lineTypes:  [2]LineType{LineStriped, LineStriped},
		heading:    math.Atan2(d.Y, d.X),
		length:     r2.Norm(d),
	}
	if l.length > 0 {
		l.direction = r2.Scale(1/l.length, d)
	} else {
		l.direction = r2.Vec{X: 1}
	}
	l.lateral = r2.Vec{X: -l.direction.Y, Y: l.direction.X}
	return l
}

// WithLineTypes sets the boundary markings.
func (l *StraightLane) WithLineTypes(left, right LineType) *StraightLane {
	l.lineTypes = [2]LineType{left, right}
	return l
}

func (l *StraightLane) Position(s, lat float64) r2.Vec {
	return r2.Add(l.start, r2.Add(r2.Scale(s, l.direction), r2.Scale(lat, l.lateral)))
}

func (l *StraightLane) LocalCoordinates(pos r2.Vec) (float64, float64) {
	delta := r2.Sub(pos, l.start)
	return r2.Dot(delta, l.direction), r2.Dot(delta, l.lateral)
}

func (l *StraightLane) HeadingAt(float64) float64 { return l.heading }

func (l *StraightLane) WidthAt(float64) float64 { return l.width }

func (l *StraightLane) Length() float64 { return l.length }

func (l *StraightLane) SpeedLimit() float64 { return l.speedLimit }

func (l *StraightLane) LineTypes() [2]LineType { return l.lineTypes }
