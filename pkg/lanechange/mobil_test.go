package lanechange

import (
	"errors"
	"testing"

	"mercator-hq/drivetwin/internal/roadtest"
	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/road"
)

func newAdvisor(g *road.Graph) *MOBIL {
	return NewMOBIL(DefaultConfig(), control.NewIDM(control.DefaultVehicleConfig(), g))
}

func TestChooseOvertakesSlowLeader(t *testing.T) {
	g := roadtest.Highway(2, 1000)
	ego := roadtest.OnHighway(0, 100, 20)
	slow := roadtest.OnHighway(0, 130, 10)
	w := road.NewRoad(g)
	w.AddVehicle(ego)
	w.AddVehicle(slow)

	lane, ok := newAdvisor(g).Choose(w, ego, 20)
	if !ok {
		t.Fatal("Choose() = false, want a lane change")
	}
	if want := roadtest.HighwayLane(1); lane != want {
		t.Errorf("Choose() = %v, want %v", lane, want)
	}
}

func TestChooseStaysOnFreeRoad(t *testing.T) {
	g := roadtest.Highway(2, 1000)
	ego := roadtest.OnHighway(0, 100, 20)
	w := road.NewRoad(g)
	w.AddVehicle(ego)

	if lane, ok := newAdvisor(g).Choose(w, ego, 20); ok {
		t.Errorf("Choose() = %v, want no change", lane)
	}
}

func TestChoosePicksFirstQualifyingLane(t *testing.T) {
	g := roadtest.Highway(3, 1000)
	ego := roadtest.OnHighway(1, 100, 20)
	slow := roadtest.OnHighway(1, 130, 10)
	w := road.NewRoad(g)
	w.AddVehicle(ego)
	w.AddVehicle(slow)

	lane, ok := newAdvisor(g).Choose(w, ego, 20)
	if !ok || lane != roadtest.HighwayLane(0) {
		t.Errorf("Choose() = %v, %v, want %v", lane, ok, roadtest.HighwayLane(0))
	}
}

func TestAdvisorChooseMatchesShouldChange(t *testing.T) {
	g := roadtest.Highway(2, 1000)
	ego := roadtest.OnHighway(0, 100, 20)
	w := road.NewRoad(g)
	w.AddVehicle(ego)

	var advisor Advisor = newAdvisor(g)
	side := roadtest.HighwayLane(1)
	if advisor.ShouldChange(w, ego, 20, side) {
		t.Errorf("ShouldChange(%v) = true on a free road", side)
	}

	w.AddVehicle(roadtest.OnHighway(0, 130, 10))
	if !advisor.ShouldChange(w, ego, 20, side) {
		t.Errorf("ShouldChange(%v) = false behind a slow leader", side)
	}
	if lane, ok := advisor.Choose(w, ego, 20); !ok || lane != side {
		t.Errorf("Choose() = %v, %v, want %v", lane, ok, side)
	}
}

func TestShouldChangeUnsafeFollower(t *testing.T) {
	g := roadtest.Highway(2, 1000)
	ego := roadtest.OnHighway(0, 100, 20)
	slow := roadtest.OnHighway(0, 130, 10)
	tailgater := roadtest.OnHighway(1, 95, 30)
	w := road.NewRoad(g)
	for _, v := range []road.Vehicle{ego, slow, tailgater} {
		w.AddVehicle(v)
	}

	if newAdvisor(g).ShouldChange(w, ego, 20, roadtest.HighwayLane(1)) {
		t.Error("ShouldChange() = true, want false with a tailgater in the target lane")
	}
}

// scriptedModel returns fixed accelerations to isolate the criteria.
type scriptedModel struct {
	ego, back road.Vehicle
	backAcc   float64
}

func (m scriptedModel) Acceleration(v road.Vehicle, front road.Object, _ float64) float64 {
	switch {
	case v == m.back:
		return m.backAcc
	case v == m.ego && front == nil:
		return 1000
	default:
		return -1000
	}
}

func TestSafetyCriterionDominates(t *testing.T) {
	g := roadtest.Highway(2, 1000)
	ego := roadtest.OnHighway(0, 100, 20)
	slow := roadtest.OnHighway(0, 130, 10)
	back := roadtest.OnHighway(1, 60, 20)
	w := road.NewRoad(g)
	for _, v := range []road.Vehicle{ego, slow, back} {
		w.AddVehicle(v)
	}

	tests := []struct {
		name    string
		backAcc float64
		want    bool
	}{
		{"follower brakes too hard", -50, false},
		{"follower at the safe limit", -10, false},
		{"follower within the safe limit", -9.9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMOBIL(DefaultConfig(), scriptedModel{ego: ego, back: back, backAcc: tt.backAcc})
			if got := m.ShouldChange(w, ego, 20, roadtest.HighwayLane(1)); got != tt.want {
				t.Errorf("ShouldChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.MaxSafeDeceleration = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
	}
}
