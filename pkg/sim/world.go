package sim

import (
	"time"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/road"
)

// World is the reference road.World: a lane graph, static objects, the ego
// vehicle and IDM-driven traffic.
type World struct {
	*road.Road

	ego     *Vehicle
	traffic []*trafficDriver
	model   *control.IDM
	vehicle *control.VehicleConfig

	elapsed time.Duration
}

// trafficDriver follows its lane and the vehicle ahead.
type trafficDriver struct {
	vehicle    *Vehicle
	targetLane road.LaneIndex
}

// NewWorld creates an empty world on network.
func NewWorld(network road.Network) *World {
	cfg := control.DefaultVehicleConfig()
	return &World{
		Road:    road.NewRoad(network),
		model:   control.NewIDM(cfg, network),
		vehicle: cfg,
	}
}

// SetEgo places the ego vehicle.
func (w *World) SetEgo(v *Vehicle) {
	w.ego = v
	w.AddVehicle(v)
}

// AddTraffic places a vehicle driven by the world.
func (w *World) AddTraffic(v *Vehicle) {
	w.traffic = append(w.traffic, &trafficDriver{vehicle: v, targetLane: v.lane})
	w.AddVehicle(v)
}

// Ego returns the ego vehicle, or nil.
func (w *World) Ego() *Vehicle { return w.ego }

// Traffic returns the vehicles driven by the world.
func (w *World) Traffic() []*Vehicle {
	out := make([]*Vehicle, len(w.traffic))
	for i, d := range w.traffic {
		out[i] = d.vehicle
	}
	return out
}

// Elapsed returns the simulated time.
func (w *World) Elapsed() time.Duration { return w.elapsed }

// Step advances the world by dt with cmd applied to the ego. Traffic commands
// are computed on the state before anything moves.
func (w *World) Step(cmd control.Command, dt time.Duration) {
	seconds := dt.Seconds()

	commands := make([]control.Command, len(w.traffic))
	for i, d := range w.traffic {
		commands[i] = w.drive(d)
	}

	if w.ego != nil {
		w.ego.Step(cmd, seconds)
	}
	for i, d := range w.traffic {
		d.vehicle.Step(commands[i], seconds)
	}

	network := w.Network()
	for _, v := range w.vehicles() {
		v.updateLane(network)
	}
	w.checkCollisions()
	w.elapsed += dt
}

// drive returns the IDM command of a traffic vehicle.
func (w *World) drive(d *trafficDriver) control.Command {
	v := d.vehicle
	network := w.Network()

	lane, err := network.Lane(d.targetLane)
	if err != nil {
		return control.Command{}
	}
	if road.AfterEnd(lane, v.pos) {
		d.targetLane, _ = network.NextLane(d.targetLane, nil, v.pos)
		if lane, err = network.Lane(d.targetLane); err != nil {
			return control.Command{}
		}
	}

	front, _ := w.NeighbourVehicles(v, road.LaneIndex{})
	var obj road.Object
	if front != nil {
		obj = front
	}
	return control.Command{
		Acceleration: w.model.Acceleration(v, obj, v.targetSpeed),
		Steering:     control.Steering(w.vehicle, v, lane),
	}.Clipped()
}

func (w *World) vehicles() []*Vehicle {
	out := w.Traffic()
	if w.ego != nil {
		out = append(out, w.ego)
	}
	return out
}

func (w *World) checkCollisions() {
	all := w.vehicles()
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i].collides(all[j]) {
				all[i].crashed = true
				all[j].crashed = true
			}
		}
	}
}
