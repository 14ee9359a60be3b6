package sim

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"mercator-hq/drivetwin/pkg/road"
	"mercator-hq/drivetwin/pkg/twin"
)

const (
	// DefaultDuration is the episode length when a scenario sets none.
	DefaultDuration = 40 * time.Second

	// DefaultFrequency is the number of ticks per simulated second.
	DefaultFrequency = 10

	// DefaultSpeedLimit applies to lanes without a speed limit [m/s].
	DefaultSpeedLimit = 30.0
)

// Point is an [x, y] pair in world coordinates.
type Point [2]float64

// Vec converts p to a vector.
func (p Point) Vec() r2.Vec { return r2.Vec{X: p[0], Y: p[1]} }

// Scenario describes the road, the ego start state and the traffic of an
// episode.
type Scenario struct {
	Name      string          `yaml:"name"`
	Duration  time.Duration   `yaml:"duration"`
	Frequency int             `yaml:"frequency"`
	Router    road.RouterKind `yaml:"router"`

	Lanes     []LaneSpec     `yaml:"lanes"`
	StopSigns []StopSignSpec `yaml:"stop_signs"`
	Ego       VehicleSpec    `yaml:"ego"`
	Traffic   []VehicleSpec  `yaml:"traffic"`

	// Intersection overrides the twin's turn destinations and cross-traffic
	// lanes for this road layout.
	Intersection *twin.IntersectionConfig `yaml:"intersection,omitempty"`
}

// LaneSpec is one lane of the edge From -> To. Lanes of the same edge are
// indexed in the order they appear.
type LaneSpec struct {
	From       road.NodeID   `yaml:"from"`
	To         road.NodeID   `yaml:"to"`
	Straight   *StraightSpec `yaml:"straight,omitempty"`
	Circular   *CircularSpec `yaml:"circular,omitempty"`
	Width      float64       `yaml:"width"`
	SpeedLimit float64       `yaml:"speed_limit"`
	LineTypes  []string      `yaml:"line_types"`
}

// StraightSpec is a straight lane centre line.
type StraightSpec struct {
	Start Point `yaml:"start"`
	End   Point `yaml:"end"`
}

// CircularSpec is an arc centre line. Phases are in degrees.
type CircularSpec struct {
	Center    Point   `yaml:"center"`
	Radius    float64 `yaml:"radius"`
	StartDeg  float64 `yaml:"start_deg"`
	EndDeg    float64 `yaml:"end_deg"`
	Clockwise bool    `yaml:"clockwise"`
}

// Placement locates an object in the local frame of a lane.
type Placement struct {
	Lane road.LaneIndex `yaml:"lane"`
	S    float64        `yaml:"s"`
	Lat  float64        `yaml:"lat"`
}

// StopSignSpec places a stop sign.
type StopSignSpec struct {
	ID        string `yaml:"id"`
	Placement `yaml:",inline"`
}

// VehicleSpec places a vehicle. TargetSpeed defaults to Speed.
type VehicleSpec struct {
	ID          string   `yaml:"id"`
	Placement   `yaml:",inline"`
	Speed       float64  `yaml:"speed"`
	TargetSpeed *float64 `yaml:"target_speed,omitempty"`
	Length      float64  `yaml:"length"`
}

// LoadScenario reads a scenario file. The file name is used when the
// scenario has no name.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// ParseScenario decodes a YAML scenario and applies defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.ApplyDefaults()
	return &s, nil
}

// ApplyDefaults fills unset fields.
func (s *Scenario) ApplyDefaults() {
	if s.Duration == 0 {
		s.Duration = DefaultDuration
	}
	if s.Frequency == 0 {
		s.Frequency = DefaultFrequency
	}
	if s.Router == "" {
		s.Router = road.RouterDijkstra
	}
	for i := range s.Lanes {
		if s.Lanes[i].Width == 0 {
			s.Lanes[i].Width = road.DefaultLaneWidth
		}
		if s.Lanes[i].SpeedLimit == 0 {
			s.Lanes[i].SpeedLimit = DefaultSpeedLimit
		}
	}
	if s.Ego.ID == "" {
		s.Ego.ID = "ego"
	}
	for i := range s.Traffic {
		if s.Traffic[i].ID == "" {
			s.Traffic[i].ID = fmt.Sprintf("vehicle-%d", i+1)
		}
	}
	for i := range s.StopSigns {
		if s.StopSigns[i].ID == "" {
			s.StopSigns[i].ID = fmt.Sprintf("stop-%d", i+1)
		}
	}
}

// Validate checks the scenario without building it.
func (s *Scenario) Validate() error {
	if s.Duration <= 0 {
		return s.fail("duration", errors.New("must be positive"))
	}
	if s.Frequency <= 0 {
		return s.fail("frequency", errors.New("must be positive"))
	}
	if s.Router != road.RouterDijkstra && s.Router != road.RouterContraction {
		return s.fail("router", fmt.Errorf("unknown router %q", s.Router))
	}
	if len(s.Lanes) == 0 {
		return s.fail("lanes", errors.New("at least one lane is required"))
	}
	for i, l := range s.Lanes {
		if err := l.validate(); err != nil {
			return s.fail(fmt.Sprintf("lanes[%d]", i), err)
		}
	}

	ids := append([]string{s.Ego.ID}, lo.Map(s.Traffic, func(v VehicleSpec, _ int) string { return v.ID })...)
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return s.fail("traffic", fmt.Errorf("duplicate vehicle id %q", dup[0]))
	}
	signIDs := lo.Map(s.StopSigns, func(sign StopSignSpec, _ int) string { return sign.ID })
	if dup := lo.FindDuplicates(signIDs); len(dup) > 0 {
		return s.fail("stop_signs", fmt.Errorf("duplicate stop sign id %q", dup[0]))
	}

	if _, err := s.Build(); err != nil {
		return err
	}
	return nil
}

func (l LaneSpec) validate() error {
	if l.From == "" || l.To == "" {
		return errors.New("from and to are required")
	}
	if (l.Straight == nil) == (l.Circular == nil) {
		return errors.New("exactly one of straight or circular is required")
	}
	if l.Circular != nil && !(l.Circular.Radius > 0) {
		return errors.New("circular radius must be positive")
	}
	if !(l.Width > 0) {
		return errors.New("width must be positive")
	}
	if len(l.LineTypes) > 2 {
		return errors.New("at most two line types")
	}
	for _, lt := range l.LineTypes {
		if _, err := road.ParseLineType(lt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) fail(field string, err error) error {
	return &ScenarioError{Scenario: s.Name, Field: field, Cause: err}
}

// Graph builds the lane graph.
func (s *Scenario) Graph() (*road.Graph, error) {
	g := road.NewGraph().WithRouter(s.Router)
	for i, spec := range s.Lanes {
		lane, err := spec.build()
		if err != nil {
			return nil, s.fail(fmt.Sprintf("lanes[%d]", i), err)
		}
		g.AddLane(spec.From, spec.To, lane)
	}
	return g, nil
}

func (l LaneSpec) build() (road.Lane, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	lines := [2]road.LineType{road.LineStriped, road.LineStriped}
	for i, name := range l.LineTypes {
		lines[i], _ = road.ParseLineType(name)
	}
	if l.Straight != nil {
		return road.NewStraightLane(l.Straight.Start.Vec(), l.Straight.End.Vec(), l.Width, l.SpeedLimit).
			WithLineTypes(lines[0], lines[1]), nil
	}
	c := l.Circular
	return road.NewCircularLane(c.Center.Vec(), c.Radius, degToRad(c.StartDeg), degToRad(c.EndDeg), c.Clockwise, l.Width, l.SpeedLimit).
		WithLineTypes(lines[0], lines[1]), nil
}

// Build creates a fresh world from the scenario.
func (s *Scenario) Build() (*World, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, err
	}
	w := NewWorld(g)

	for i, spec := range s.StopSigns {
		pos, _, err := spec.locate(g)
		if err != nil {
			return nil, s.fail(fmt.Sprintf("stop_signs[%d]", i), err)
		}
		w.AddObject(&road.StopSign{ID: spec.ID, Pos: pos})
	}

	ego, err := s.Ego.vehicle(g)
	if err != nil {
		return nil, s.fail("ego", err)
	}
	w.SetEgo(ego)

	for i, spec := range s.Traffic {
		v, err := spec.vehicle(g)
		if err != nil {
			return nil, s.fail(fmt.Sprintf("traffic[%d]", i), err)
		}
		w.AddTraffic(v)
	}
	return w, nil
}

// NewEpisodeID returns a fresh episode identifier.
func NewEpisodeID() string {
	return uuid.NewString()
}

// RunnerConfig returns the episode length and tick rate of the scenario.
func (s *Scenario) RunnerConfig() RunnerConfig {
	return RunnerConfig{Duration: s.Duration, Frequency: s.Frequency}
}

// locate returns the world position and heading of a placement.
func (p Placement) locate(n road.Network) (r2.Vec, float64, error) {
	if !p.Lane.Valid() || p.Lane.IsZero() {
		return r2.Vec{}, 0, fmt.Errorf("lane %v is malformed", p.Lane)
	}
	lane, err := n.Lane(p.Lane)
	if err != nil {
		return r2.Vec{}, 0, err
	}
	return lane.Position(p.S, p.Lat), lane.HeadingAt(p.S), nil
}

func (v VehicleSpec) vehicle(n road.Network) (*Vehicle, error) {
	pos, heading, err := v.locate(n)
	if err != nil {
		return nil, err
	}
	if v.Length < 0 || math.IsNaN(v.Speed) {
		return nil, errors.New("length and speed must be valid")
	}
	target := v.Speed
	if v.TargetSpeed != nil {
		target = *v.TargetSpeed
	}
	veh := NewVehicle(v.ID, pos, heading, v.Speed)
	veh.lane = v.Lane
	veh.targetSpeed = target
	if v.Length > 0 {
		veh.length = v.Length
	}
	return veh, nil
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
