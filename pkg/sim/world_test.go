package sim

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"mercator-hq/drivetwin/internal/roadtest"
	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/road"
)

const dt = 100 * time.Millisecond

func TestVehicleStep(t *testing.T) {
	tests := []struct {
		name        string
		cmd         control.Command
		wantPos     r2.Vec
		wantSpeed   float64
		wantTurning bool
	}{
		{"cruise", control.Command{}, r2.Vec{X: 2}, 20, false},
		{"accelerate", control.Command{Acceleration: 5}, r2.Vec{X: 2}, 20.5, false},
		{"steer", control.Command{Steering: 0.2}, r2.Vec{}, 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVehicle("v", r2.Vec{}, 0, 20)
			v.Step(tt.cmd, dt.Seconds())
			if v.Speed() != tt.wantSpeed {
				t.Errorf("Speed() = %v, want %v", v.Speed(), tt.wantSpeed)
			}
			if tt.wantTurning {
				if !(v.Heading() > 0) || !(v.Position().Y > 0) {
					t.Errorf("heading %v, position %v: want a left turn", v.Heading(), v.Position())
				}
				return
			}
			if v.Heading() != 0 || math.Abs(v.Position().X-tt.wantPos.X) > 1e-9 || v.Position().Y != 0 {
				t.Errorf("position %v heading %v, want %v", v.Position(), v.Heading(), tt.wantPos)
			}
		})
	}
}

func TestVehicleSpeedBounds(t *testing.T) {
	v := NewVehicle("v", r2.Vec{}, 0, 39)
	v.Step(control.Command{Acceleration: 100}, 1)
	if v.Speed() != MaxSpeed {
		t.Errorf("Speed() = %v, want %v", v.Speed(), MaxSpeed)
	}
}

func TestCrashedVehicleStops(t *testing.T) {
	v := NewVehicle("v", r2.Vec{}, 0, 20)
	v.crashed = true
	v.Step(control.Command{Acceleration: 3, Steering: 0.5}, dt.Seconds())
	if math.Abs(v.Speed()) > 1e-9 || v.Heading() != 0 {
		t.Errorf("crashed vehicle speed %v heading %v, want 0, 0", v.Speed(), v.Heading())
	}
}

func TestCollides(t *testing.T) {
	a := NewVehicle("a", r2.Vec{}, 0, 0)
	tests := []struct {
		name string
		pos  r2.Vec
		want bool
	}{
		{"overlapping", r2.Vec{X: 4}, true},
		{"bumper to bumper", r2.Vec{X: 5}, false},
		{"next lane", r2.Vec{X: 1, Y: 4}, false},
		{"half lane", r2.Vec{X: 1, Y: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewVehicle("b", tt.pos, 0, 0)
			if got := a.collides(b); got != tt.want {
				t.Errorf("collides() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrafficFollowsLeader(t *testing.T) {
	w := NewWorld(roadtest.Highway(2, 2000))
	ego := NewVehicle("ego", r2.Vec{X: 10, Y: 4}, 0, 0)
	ego.lane = roadtest.HighwayLane(1)
	ego.targetSpeed = 0
	w.SetEgo(ego)

	leader := NewVehicle("leader", r2.Vec{X: 100}, 0, 10)
	leader.lane = roadtest.HighwayLane(0)
	follower := NewVehicle("follower", r2.Vec{X: 60}, 0, 20)
	follower.lane = roadtest.HighwayLane(0)
	w.AddTraffic(leader)
	w.AddTraffic(follower)

	for i := 0; i < 300; i++ {
		w.Step(control.Command{}, dt)
	}

	if leader.Crashed() || follower.Crashed() {
		t.Fatal("traffic crashed")
	}
	if gap := leader.Position().X - follower.Position().X; gap < road.VehicleLength {
		t.Errorf("gap = %v, want at least a vehicle length", gap)
	}
	if math.Abs(follower.Speed()-10) > 1 {
		t.Errorf("follower speed = %v, want close to the leader's 10", follower.Speed())
	}
	if follower.LaneIndex() != roadtest.HighwayLane(0) {
		t.Errorf("follower lane = %v", follower.LaneIndex())
	}
	if w.Elapsed() != 300*dt {
		t.Errorf("Elapsed() = %v, want %v", w.Elapsed(), 300*dt)
	}
}

func TestTrafficContinuesOntoNextRoad(t *testing.T) {
	g := road.NewGraph()
	g.AddLane("a", "b", road.NewStraightLane(r2.Vec{}, r2.Vec{X: 100}, road.DefaultLaneWidth, 30))
	g.AddLane("b", "c", road.NewStraightLane(r2.Vec{X: 100}, r2.Vec{X: 300}, road.DefaultLaneWidth, 30))
	w := NewWorld(g)

	v := NewVehicle("v", r2.Vec{X: 90}, 0, 10)
	v.lane = road.LaneIndex{From: "a", To: "b"}
	w.AddTraffic(v)

	for i := 0; i < 30; i++ {
		w.Step(control.Command{}, dt)
	}
	if want := (road.LaneIndex{From: "b", To: "c"}); v.LaneIndex() != want {
		t.Errorf("LaneIndex() = %v, want %v", v.LaneIndex(), want)
	}
	if !v.OnRoad() {
		t.Error("vehicle left the road")
	}
}

func TestWorldDetectsCrash(t *testing.T) {
	w := NewWorld(roadtest.Highway(1, 1000))
	ego := NewVehicle("ego", r2.Vec{X: 100}, 0, 30)
	ego.lane = roadtest.HighwayLane(0)
	w.SetEgo(ego)
	parked := NewVehicle("parked", r2.Vec{X: 106}, 0, 0)
	parked.lane = roadtest.HighwayLane(0)
	parked.targetSpeed = 0.01
	w.AddTraffic(parked)

	w.Step(control.Command{}, dt)
	if !ego.Crashed() || !parked.Crashed() {
		t.Errorf("crashed = %v, %v; want both", ego.Crashed(), parked.Crashed())
	}
}
