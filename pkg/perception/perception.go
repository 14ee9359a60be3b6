// Package perception answers the twin's ground-truth queries about objects
// around the ego vehicle: the leader to follow, vehicles ahead and behind in a
// given lane, and stop signs that have not been passed yet.
package perception

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"mercator-hq/drivetwin/pkg/road"
)

// NoStopSign is returned by StopSignAhead when no stop sign is ahead.
const NoStopSign = -1.0

// DefaultRange is the default search distance of FrontIn and RearIn [m].
const DefaultRange = 100.0

// Perceiver runs queries for one ego vehicle and owns the set of stop signs
// the ego has already recovered from.
type Perceiver struct {
	world   road.World
	ego     road.Vehicle
	ignored map[string]struct{}
}

// New creates a Perceiver for ego.
func New(world road.World, ego road.Vehicle) *Perceiver {
	return &Perceiver{
		world:   world,
		ego:     ego,
		ignored: make(map[string]struct{}),
	}
}

// Reset rebinds the perceiver and forgets every ignored stop sign.
func (p *Perceiver) Reset(world road.World, ego road.Vehicle) {
	p.world = world
	p.ego = ego
	p.ignored = make(map[string]struct{})
}

// Ego returns the ego vehicle.
func (p *Perceiver) Ego() road.Vehicle { return p.ego }

// World returns the observed world.
func (p *Perceiver) World() road.World { return p.world }

// FrontOrStopSign returns the nearest vehicle or un-ignored stop sign ahead of
// the ego on its current lane, or nil.
func (p *Perceiver) FrontOrStopSign() road.Object {
	return p.FrontOrStopSignIn(p.ego.LaneIndex())
}

// FrontOrStopSignIn is FrontOrStopSign on an explicit lane.
func (p *Perceiver) FrontOrStopSignIn(idx road.LaneIndex) road.Object {
	candidates := make([]road.Object, 0, len(p.world.Vehicles())+len(p.world.Objects()))
	for _, v := range p.world.Vehicles() {
		if v != p.ego {
			candidates = append(candidates, v)
		}
	}
	candidates = append(candidates, p.unignoredStopSigns()...)
	return p.nearestAhead(idx, candidates)
}

// FrontStopSign returns the nearest un-ignored stop sign ahead on the ego
// lane, or nil.
func (p *Perceiver) FrontStopSign() *road.StopSign {
	obj := p.nearestAhead(p.ego.LaneIndex(), p.unignoredStopSigns())
	if obj == nil {
		return nil
	}
	return obj.(*road.StopSign)
}

// StopSignAhead returns the distance to the nearest un-ignored stop sign
// ahead, or NoStopSign.
func (p *Perceiver) StopSignAhead() float64 {
	sign := p.FrontStopSign()
	if sign == nil {
		return NoStopSign
	}
	return road.LaneDistance(p.world.Network(), p.ego, sign)
}

// FrontIn returns the vehicle ahead of the ego in lane when it is closer than
// maxDistance. A zero lane means the ego lane.
func (p *Perceiver) FrontIn(idx road.LaneIndex, maxDistance float64) road.Vehicle {
	front, _ := p.world.NeighbourVehicles(p.ego, idx)
	if front == nil {
		return nil
	}
	d := road.LaneDistance(p.world.Network(), p.ego, front)
	if 0 < d && d < maxDistance {
		return front
	}
	return nil
}

// RearIn returns the vehicle behind the ego in lane when it is closer than
// maxDistance. A zero lane means the ego lane.
func (p *Perceiver) RearIn(idx road.LaneIndex, maxDistance float64) road.Vehicle {
	_, rear := p.world.NeighbourVehicles(p.ego, idx)
	if rear == nil {
		return nil
	}
	d := road.LaneDistance(p.world.Network(), p.ego, rear)
	if -maxDistance < d && d < 0 {
		return rear
	}
	return nil
}

// Neighbours returns the closest vehicles ahead of and behind the ego in lane
// without any distance bound.
func (p *Perceiver) Neighbours(idx road.LaneIndex) (front, rear road.Vehicle) {
	return p.world.NeighbourVehicles(p.ego, idx)
}

// Ignore records sign as passed. It is never reported again until Reset.
func (p *Perceiver) Ignore(sign *road.StopSign) {
	if sign == nil {
		return
	}
	p.ignored[sign.ID] = struct{}{}
}

// IsIgnored reports whether the stop sign with id has been passed.
func (p *Perceiver) IsIgnored(id string) bool {
	_, ok := p.ignored[id]
	return ok
}

// Ignored returns the ids of passed stop signs in sorted order.
func (p *Perceiver) Ignored() []string {
	ids := lo.Keys(p.ignored)
	slices.Sort(ids)
	return ids
}

func (p *Perceiver) unignoredStopSigns() []road.Object {
	var out []road.Object
	for _, obj := range p.world.Objects() {
		if sign, ok := obj.(*road.StopSign); ok && !p.IsIgnored(sign.ID) {
			out = append(out, sign)
		}
	}
	return out
}

// nearestAhead returns the candidate on lane with the smallest longitudinal
// coordinate not behind the ego.
func (p *Perceiver) nearestAhead(idx road.LaneIndex, candidates []road.Object) road.Object {
	if idx.IsZero() {
		return nil
	}
	lane, err := p.world.Network().Lane(idx)
	if err != nil {
		return nil
	}
	s, _ := lane.LocalCoordinates(p.ego.Position())

	var nearest road.Object
	sNearest := math.Inf(1)
	for _, obj := range candidates {
		if !road.OnLane(lane, obj.Position(), 0) {
			continue
		}
		sObj, _ := lane.LocalCoordinates(obj.Position())
		if s <= sObj && sObj <= sNearest {
			nearest, sNearest = obj, sObj
		}
	}
	return nearest
}
