package road

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// LineType describes a lane boundary marking.
type LineType int

const (
	LineNone LineType = iota
	LineStriped
	LineContinuous
	LineContinuousLine
)

// String returns the marking name.
func (t LineType) String() string {
	switch t {
	case LineNone:
		return "none"
	case LineStriped:
		return "striped"
	case LineContinuous:
		return "continuous"
	case LineContinuousLine:
		return "continuous_line"
	default:
		return fmt.Sprintf("LineType(%d)", int(t))
	}
}

// ParseLineType parses a marking name as produced by String.
func ParseLineType(s string) (LineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return LineNone, nil
	case "striped":
		return LineStriped, nil
	case "continuous":
		return LineContinuous, nil
	case "continuous_line":
		return LineContinuousLine, nil
	default:
		return LineNone, fmt.Errorf("unknown line type %q", s)
	}
}

// Lane is a lane segment with its own local frame.
//
// The longitudinal coordinate s runs along the centre line from 0 at the lane
// start to Length at its end. The lateral axis is the lane direction rotated
// by +90°, the direction in which parallel lane indices increase.
type Lane interface {
	// Position converts local coordinates to a world position.
	Position(s, lat float64) r2.Vec

	// LocalCoordinates converts a world position to (s, lat).
	LocalCoordinates(pos r2.Vec) (s, lat float64)

	// HeadingAt returns the lane heading at longitudinal coordinate s [rad].
	HeadingAt(s float64) float64

	// WidthAt returns the lane width at longitudinal coordinate s [m].
	WidthAt(s float64) float64

	// Length returns the centre line length [m].
	Length() float64

	// SpeedLimit returns the lane speed limit [m/s].
	SpeedLimit() float64

	// LineTypes returns the left and right boundary markings.
	LineTypes() [2]LineType
}

// OnLane reports whether pos lies on the lane, widened laterally by margin.
func OnLane(l Lane, pos r2.Vec, margin float64) bool {
	s, lat := l.LocalCoordinates(pos)
	return math.Abs(lat) <= l.WidthAt(s)/2+margin &&
		-VehicleLength <= s && s < l.Length()+VehicleLength
}

// AfterEnd reports whether pos has reached the end of the lane.
func AfterEnd(l Lane, pos r2.Vec) bool {
	s, _ := l.LocalCoordinates(pos)
	return s > l.Length()-VehicleLength/2
}

// Distance returns an L1 distance from pos to the lane.
func Distance(l Lane, pos r2.Vec) float64 {
	s, lat := l.LocalCoordinates(pos)
	return math.Abs(lat) + math.Max(s-l.Length(), 0) + math.Max(-s, 0)
}

// DistanceWithHeading adds the heading mismatch to Distance so that lanes
// pointing the wrong way rank lower.
func DistanceWithHeading(l Lane, pos r2.Vec, heading float64) float64 {
	s, _ := l.LocalCoordinates(pos)
	angle := math.Abs(WrapToPi(heading - l.HeadingAt(s)))
	return Distance(l, pos) + angle
}
