package perception

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r2"

	"mercator-hq/drivetwin/internal/roadtest"
	"mercator-hq/drivetwin/pkg/road"
)

func newWorld(vehicles ...road.Vehicle) *road.Road {
	w := road.NewRoad(roadtest.Highway(2, 1000))
	for _, v := range vehicles {
		w.AddVehicle(v)
	}
	return w
}

func TestFrontOrStopSign(t *testing.T) {
	ego := roadtest.OnHighway(0, 100, 10)
	car := roadtest.OnHighway(0, 160, 10)
	offLane := &roadtest.Vehicle{Pos: r2.Vec{X: 120, Y: 3}, Lane: roadtest.HighwayLane(0)}
	behind := roadtest.OnHighway(0, 80, 10)
	w := newWorld(ego, car, offLane, behind)

	p := New(w, ego)
	if got := p.FrontOrStopSign(); got != road.Object(car) {
		t.Fatalf("FrontOrStopSign() = %v, want car at x=160", got)
	}

	sign := &road.StopSign{ID: "s1", Pos: r2.Vec{X: 140}}
	w.AddObject(sign)
	if got := p.FrontOrStopSign(); got != road.Object(sign) {
		t.Errorf("FrontOrStopSign() = %v, want stop sign", got)
	}

	p.Ignore(sign)
	if got := p.FrontOrStopSign(); got != road.Object(car) {
		t.Errorf("FrontOrStopSign() after ignore = %v, want car", got)
	}
}

func TestFrontOrStopSignEmpty(t *testing.T) {
	ego := roadtest.OnHighway(0, 100, 10)
	p := New(newWorld(ego), ego)
	if got := p.FrontOrStopSign(); got != nil {
		t.Errorf("FrontOrStopSign() = %v, want nil", got)
	}
}

func TestStopSignAhead(t *testing.T) {
	ego := roadtest.OnHighway(0, 100, 10)
	w := newWorld(ego)
	p := New(w, ego)

	if got := p.StopSignAhead(); got != NoStopSign {
		t.Errorf("StopSignAhead() = %v, want %v", got, NoStopSign)
	}

	sign := &road.StopSign{ID: "s1", Pos: r2.Vec{X: 130}}
	w.AddObject(sign)
	if got := p.StopSignAhead(); !roadtest.AlmostEqual(got, 30, 1e-9) {
		t.Errorf("StopSignAhead() = %v, want 30", got)
	}

	p.Ignore(sign)
	for i := 0; i < 3; i++ {
		if got := p.StopSignAhead(); got != NoStopSign {
			t.Errorf("StopSignAhead() after ignore = %v, want %v", got, NoStopSign)
		}
	}
	if diff := cmp.Diff([]string{"s1"}, p.Ignored()); diff != "" {
		t.Errorf("Ignored() mismatch (-want +got):\n%s", diff)
	}

	p.Reset(w, ego)
	if got := p.StopSignAhead(); got == NoStopSign {
		t.Error("StopSignAhead() after Reset should report the sign again")
	}
}

func TestFrontAndRearIn(t *testing.T) {
	ego := roadtest.OnHighway(0, 100, 10)
	front := roadtest.OnHighway(1, 150, 10)
	rear := roadtest.OnHighway(1, 40, 10)
	farFront := roadtest.OnHighway(0, 300, 10)
	w := newWorld(ego, front, rear, farFront)
	p := New(w, ego)
	lane1 := roadtest.HighwayLane(1)

	tests := []struct {
		name string
		got  road.Vehicle
		want road.Vehicle
	}{
		{"front in lane 1", p.FrontIn(lane1, DefaultRange), front},
		{"front in lane 1 out of range", p.FrontIn(lane1, 40), nil},
		{"rear in lane 1", p.RearIn(lane1, DefaultRange), rear},
		{"rear in lane 1 out of range", p.RearIn(lane1, 50), nil},
		{"front in own lane beyond range", p.FrontIn(roadtest.HighwayLane(0), DefaultRange), nil},
		{"front in own lane via zero lane", p.FrontIn(road.LaneIndex{}, 500), farFront},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
