package road

import (
	"math"
)

// World is the ground truth the twin observes each tick.
type World interface {
	Network() Network

	// Vehicles returns every vehicle on the road, ego included.
	Vehicles() []Vehicle

	// Objects returns static road objects such as stop signs.
	Objects() []Object

	// NeighbourVehicles returns the closest vehicles ahead of and behind v on
	// lane. A zero lane means v's own lane. Either result may be nil.
	NeighbourVehicles(v Vehicle, lane LaneIndex) (front, rear Vehicle)
}

// NeighbourMargin widens lanes when looking for neighbours so that vehicles
// straddling a marking are still seen [m].
const NeighbourMargin = 1.0

// Road is the reference World implementation.
type Road struct {
	network  Network
	vehicles []Vehicle
	objects  []Object
}

// NewRoad creates an empty road on network.
func NewRoad(network Network) *Road {
	return &Road{network: network}
}

// AddVehicle places a vehicle on the road.
func (r *Road) AddVehicle(v Vehicle) {
	r.vehicles = append(r.vehicles, v)
}

// AddObject places a static object on the road.
func (r *Road) AddObject(o Object) {
	r.objects = append(r.objects, o)
}

func (r *Road) Network() Network { return r.network }

func (r *Road) Vehicles() []Vehicle { return r.vehicles }

func (r *Road) Objects() []Object { return r.objects }

func (r *Road) NeighbourVehicles(v Vehicle, idx LaneIndex) (Vehicle, Vehicle) {
	if idx.IsZero() {
		idx = v.LaneIndex()
	}
	if idx.IsZero() {
		return nil, nil
	}
	lane, err := r.network.Lane(idx)
	if err != nil {
		return nil, nil
	}

	s, _ := lane.LocalCoordinates(v.Position())
	var (
		front, rear   Vehicle
		sFront, sRear float64
	)
	for _, other := range r.vehicles {
		if other == v {
			continue
		}
		if !OnLane(lane, other.Position(), NeighbourMargin) {
			continue
		}
		sOther, _ := lane.LocalCoordinates(other.Position())
		if s <= sOther && (front == nil || sOther <= sFront) {
			front, sFront = other, sOther
		}
		if sOther < s && (rear == nil || sOther > sRear) {
			rear, sRear = other, sOther
		}
	}
	return front, rear
}

// LaneDistance returns the signed longitudinal gap from v to o, measured on
// v's current lane. Positive values mean o is ahead. It returns NaN when o is
// nil or v's lane cannot be resolved.
func LaneDistance(n Network, v Vehicle, o Object) float64 {
	return LaneDistanceOn(n, v.LaneIndex(), v, o)
}

// LaneDistanceOn is LaneDistance measured on an explicit lane.
func LaneDistanceOn(n Network, idx LaneIndex, v Vehicle, o Object) float64 {
	if o == nil {
		return math.NaN()
	}
	lane, err := n.Lane(idx)
	if err != nil {
		return math.NaN()
	}
	sOther, _ := lane.LocalCoordinates(o.Position())
	sSelf, _ := lane.LocalCoordinates(v.Position())
	return sOther - sSelf
}
