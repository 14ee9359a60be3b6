package road

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

// testVehicle is a minimal Vehicle for road queries.
type testVehicle struct {
	pos     r2.Vec
	heading float64
	speed   float64
	lane    LaneIndex
}

func (v *testVehicle) Position() r2.Vec     { return v.pos }
func (v *testVehicle) Velocity() r2.Vec     { return r2.Scale(v.speed, v.Direction()) }
func (v *testVehicle) Heading() float64     { return v.heading }
func (v *testVehicle) Speed() float64       { return v.speed }
func (v *testVehicle) Direction() r2.Vec    { return HeadingVector(v.heading) }
func (v *testVehicle) Length() float64      { return VehicleLength }
func (v *testVehicle) LaneIndex() LaneIndex { return v.lane }

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

// twoLaneHighway builds a -> b with two lanes followed by b -> c with two lanes.
func twoLaneHighway() *Graph {
	g := NewGraph()
	for i := 0; i < 2; i++ {
		y := float64(i) * DefaultLaneWidth
		g.AddLane("a", "b", NewStraightLane(r2.Vec{X: 0, Y: y}, r2.Vec{X: 100, Y: y}, DefaultLaneWidth, 30))
	}
	for i := 0; i < 2; i++ {
		y := float64(i) * DefaultLaneWidth
		g.AddLane("b", "c", NewStraightLane(r2.Vec{X: 100, Y: y}, r2.Vec{X: 300, Y: y}, DefaultLaneWidth, 30))
	}
	return g
}

func TestNotZero(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"large positive", 3, 3},
		{"large negative", -3, -3},
		{"zero", 0, Epsilon},
		{"small positive", 1e-5, Epsilon},
		{"small negative", -1e-5, -Epsilon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NotZero(tt.in); got != tt.want {
				t.Errorf("NotZero(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWrapToPi(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{4*math.Pi + 0.5, 0.5},
	}
	for _, tt := range tests {
		got := WrapToPi(tt.in)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("WrapToPi(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got <= -math.Pi || got > math.Pi {
			t.Errorf("WrapToPi(%v) = %v, outside (-π, π]", tt.in, got)
		}
	}
}

func TestStraightLaneCoordinates(t *testing.T) {
	lane := NewStraightLane(r2.Vec{X: 10, Y: 0}, r2.Vec{X: 110, Y: 0}, DefaultLaneWidth, 30)

	s, lat := lane.LocalCoordinates(r2.Vec{X: 30, Y: 1.5})
	if !almostEqual(s, 20) || !almostEqual(lat, 1.5) {
		t.Errorf("LocalCoordinates = (%v, %v), want (20, 1.5)", s, lat)
	}

	p := lane.Position(20, 1.5)
	if !almostEqual(p.X, 30) || !almostEqual(p.Y, 1.5) {
		t.Errorf("Position(20, 1.5) = %v, want (30, 1.5)", p)
	}

	if lane.Length() != 100 {
		t.Errorf("Length() = %v, want 100", lane.Length())
	}
	if lane.HeadingAt(50) != 0 {
		t.Errorf("HeadingAt() = %v, want 0", lane.HeadingAt(50))
	}
}

func TestCircularLaneRoundTrip(t *testing.T) {
	lane := NewCircularLane(r2.Vec{X: 0, Y: 0}, 20, 0, math.Pi/2, true, DefaultLaneWidth, 10)

	wantLength := 20 * math.Pi / 2
	if !almostEqual(lane.Length(), wantLength) {
		t.Fatalf("Length() = %v, want %v", lane.Length(), wantLength)
	}

	for _, s := range []float64{0, 5, 15, wantLength} {
		for _, lat := range []float64{-1, 0, 1} {
			p := lane.Position(s, lat)
			gotS, gotLat := lane.LocalCoordinates(p)
			if math.Abs(gotS-s) > 1e-6 || math.Abs(gotLat-lat) > 1e-6 {
				t.Errorf("LocalCoordinates(Position(%v, %v)) = (%v, %v)", s, lat, gotS, gotLat)
			}
		}
	}

	if got := lane.HeadingAt(0); !almostEqual(got, math.Pi/2) {
		t.Errorf("HeadingAt(0) = %v, want π/2", got)
	}
}

func TestLaneMembership(t *testing.T) {
	lane := NewStraightLane(r2.Vec{}, r2.Vec{X: 100}, DefaultLaneWidth, 30)

	tests := []struct {
		name     string
		pos      r2.Vec
		margin   float64
		onLane   bool
		afterEnd bool
	}{
		{"centre", r2.Vec{X: 50}, 0, true, false},
		{"edge", r2.Vec{X: 50, Y: 2}, 0, true, false},
		{"off lane", r2.Vec{X: 50, Y: 2.5}, 0, false, false},
		{"off lane within margin", r2.Vec{X: 50, Y: 2.5}, 1, true, false},
		{"just before start", r2.Vec{X: -4}, 0, true, false},
		{"far before start", r2.Vec{X: -6}, 0, false, false},
		{"near end", r2.Vec{X: 98}, 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OnLane(lane, tt.pos, tt.margin); got != tt.onLane {
				t.Errorf("OnLane() = %v, want %v", got, tt.onLane)
			}
			if got := AfterEnd(lane, tt.pos); got != tt.afterEnd {
				t.Errorf("AfterEnd() = %v, want %v", got, tt.afterEnd)
			}
		})
	}
}

func TestGraphSideLanes(t *testing.T) {
	g := NewGraph()
	for i := 0; i < 3; i++ {
		y := float64(i) * DefaultLaneWidth
		g.AddLane("a", "b", NewStraightLane(r2.Vec{Y: y}, r2.Vec{X: 100, Y: y}, DefaultLaneWidth, 30))
	}

	tests := []struct {
		idx  LaneIndex
		want []LaneIndex
	}{
		{LaneIndex{"a", "b", 0}, []LaneIndex{{"a", "b", 1}}},
		{LaneIndex{"a", "b", 1}, []LaneIndex{{"a", "b", 0}, {"a", "b", 2}}},
		{LaneIndex{"a", "b", 2}, []LaneIndex{{"a", "b", 1}}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, g.SideLanes(tt.idx)); diff != "" {
			t.Errorf("SideLanes(%v) mismatch (-want +got):\n%s", tt.idx, diff)
		}
	}
}

func TestGraphLaneNotFound(t *testing.T) {
	g := twoLaneHighway()
	_, err := g.Lane(LaneIndex{"a", "b", 5})
	if !errors.Is(err, ErrLaneNotFound) {
		t.Errorf("Lane() error = %v, want ErrLaneNotFound", err)
	}
}

func TestGraphNextLane(t *testing.T) {
	g := twoLaneHighway()

	t.Run("keeps index on equal lane counts", func(t *testing.T) {
		got, _ := g.NextLane(LaneIndex{"a", "b", 1}, nil, r2.Vec{X: 99, Y: 4})
		if want := (LaneIndex{"b", "c", 1}); got != want {
			t.Errorf("NextLane() = %v, want %v", got, want)
		}
	})

	t.Run("pops finished route step", func(t *testing.T) {
		route := Route{{"a", "b", 0}, {"b", "c", 0}}
		got, rest := g.NextLane(LaneIndex{"a", "b", 0}, route, r2.Vec{X: 99})
		if want := (LaneIndex{"b", "c", 0}); got != want {
			t.Errorf("NextLane() = %v, want %v", got, want)
		}
		if diff := cmp.Diff(Route{{"b", "c", 0}}, rest); diff != "" {
			t.Errorf("route mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("dead end keeps current lane", func(t *testing.T) {
		cur := LaneIndex{"b", "c", 0}
		got, _ := g.NextLane(cur, nil, r2.Vec{X: 299})
		if got != cur {
			t.Errorf("NextLane() = %v, want %v", got, cur)
		}
	})
}

func TestGraphNextLaneFollowsRoute(t *testing.T) {
	g := NewGraph()
	g.AddLane("a", "b", NewStraightLane(r2.Vec{}, r2.Vec{X: 100}, DefaultLaneWidth, 30))
	g.AddLane("b", "left", NewStraightLane(r2.Vec{X: 100}, r2.Vec{X: 100, Y: -100}, DefaultLaneWidth, 30))
	g.AddLane("b", "right", NewStraightLane(r2.Vec{X: 100}, r2.Vec{X: 100, Y: 100}, DefaultLaneWidth, 30))

	route := Route{{"a", "b", 0}, {"b", "right", 0}}
	got, _ := g.NextLane(LaneIndex{"a", "b", 0}, route, r2.Vec{X: 99})
	if want := (LaneIndex{"b", "right", 0}); got != want {
		t.Errorf("NextLane() = %v, want %v", got, want)
	}
}

func TestGraphShortestPath(t *testing.T) {
	for _, kind := range []RouterKind{RouterDijkstra, RouterContraction} {
		t.Run(string(kind), func(t *testing.T) {
			g := NewGraph().WithRouter(kind)
			g.AddLane("a", "b", NewStraightLane(r2.Vec{}, r2.Vec{X: 100}, DefaultLaneWidth, 30))
			g.AddLane("b", "c", NewStraightLane(r2.Vec{X: 100}, r2.Vec{X: 200}, DefaultLaneWidth, 30))
			g.AddLane("a", "c", NewStraightLane(r2.Vec{}, r2.Vec{X: 400, Y: 300}, DefaultLaneWidth, 30))
			g.AddLane("c", "d", NewStraightLane(r2.Vec{X: 200}, r2.Vec{X: 300}, DefaultLaneWidth, 30))

			got, err := g.ShortestPath("a", "d")
			if err != nil {
				t.Fatalf("ShortestPath() error = %v", err)
			}
			if diff := cmp.Diff([]NodeID{"a", "b", "c", "d"}, got); diff != "" {
				t.Errorf("ShortestPath() mismatch (-want +got):\n%s", diff)
			}

			if _, err := g.ShortestPath("d", "a"); !errors.Is(err, ErrNoPath) {
				t.Errorf("ShortestPath(d, a) error = %v, want ErrNoPath", err)
			}
			if _, err := g.ShortestPath("a", "zz"); !errors.Is(err, ErrNodeNotFound) {
				t.Errorf("ShortestPath(a, zz) error = %v, want ErrNodeNotFound", err)
			}
		})
	}
}

func TestGraphClosestLaneIndex(t *testing.T) {
	g := twoLaneHighway()
	got, err := g.ClosestLaneIndex(r2.Vec{X: 50, Y: 3.5}, 0)
	if err != nil {
		t.Fatalf("ClosestLaneIndex() error = %v", err)
	}
	if want := (LaneIndex{"a", "b", 1}); got != want {
		t.Errorf("ClosestLaneIndex() = %v, want %v", got, want)
	}

	if _, err := NewGraph().ClosestLaneIndex(r2.Vec{}, 0); !errors.Is(err, ErrEmptyNetwork) {
		t.Errorf("ClosestLaneIndex() on empty graph error = %v, want ErrEmptyNetwork", err)
	}
}

func TestRoadNeighbourVehicles(t *testing.T) {
	g := twoLaneHighway()
	r := NewRoad(g)
	lane0 := LaneIndex{"a", "b", 0}
	lane1 := LaneIndex{"a", "b", 1}

	ego := &testVehicle{pos: r2.Vec{X: 50}, lane: lane0}
	ahead := &testVehicle{pos: r2.Vec{X: 70}, lane: lane0}
	farAhead := &testVehicle{pos: r2.Vec{X: 90}, lane: lane0}
	behind := &testVehicle{pos: r2.Vec{X: 20}, lane: lane0}
	other := &testVehicle{pos: r2.Vec{X: 60, Y: 4}, lane: lane1}
	for _, v := range []Vehicle{ego, farAhead, ahead, behind, other} {
		r.AddVehicle(v)
	}

	front, rear := r.NeighbourVehicles(ego, LaneIndex{})
	if front != ahead {
		t.Errorf("front = %v, want vehicle at x=70", front)
	}
	if rear != behind {
		t.Errorf("rear = %v, want vehicle at x=20", rear)
	}

	front, rear = r.NeighbourVehicles(ego, lane1)
	if front != other {
		t.Errorf("front in lane 1 = %v, want vehicle at x=60", front)
	}
	if rear != nil {
		t.Errorf("rear in lane 1 = %v, want nil", rear)
	}
}

func TestLaneDistance(t *testing.T) {
	g := twoLaneHighway()
	lane0 := LaneIndex{"a", "b", 0}
	ego := &testVehicle{pos: r2.Vec{X: 50}, lane: lane0}
	sign := &StopSign{ID: "s1", Pos: r2.Vec{X: 80}}

	if got := LaneDistance(g, ego, sign); !almostEqual(got, 30) {
		t.Errorf("LaneDistance() = %v, want 30", got)
	}
	if got := LaneDistance(g, ego, nil); !math.IsNaN(got) {
		t.Errorf("LaneDistance(nil) = %v, want NaN", got)
	}
}

func TestLaneIndexYAML(t *testing.T) {
	var got struct {
		Seq LaneIndex   `yaml:"seq"`
		Map LaneIndex   `yaml:"map"`
		All []LaneIndex `yaml:"all"`
	}
	doc := `
seq: [o1, ir1, 0]
map: {from: a, to: b, index: 2}
all:
  - [il1, o1, 0]
  - [ir3, il1, 1]
`
	if err := yaml.Unmarshal([]byte(doc), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Seq != (LaneIndex{From: "o1", To: "ir1", Index: 0}) {
		t.Errorf("seq = %v", got.Seq)
	}
	if got.Map != (LaneIndex{From: "a", To: "b", Index: 2}) {
		t.Errorf("map = %v", got.Map)
	}
	if len(got.All) != 2 || got.All[1] != (LaneIndex{From: "ir3", To: "il1", Index: 1}) {
		t.Errorf("all = %v", got.All)
	}

	out, err := yaml.Marshal(LaneIndex{From: "a", To: "b", Index: 1})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != "[a, b, 1]\n" {
		t.Errorf("Marshal() = %q", out)
	}

	var bad LaneIndex
	if err := yaml.Unmarshal([]byte(`[a, b]`), &bad); err == nil {
		t.Error("two-element lane index should fail")
	}
}
