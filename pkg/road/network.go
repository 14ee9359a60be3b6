package road

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// Network is the read-only lane graph the twin queries.
type Network interface {
	// Lane resolves a lane index.
	Lane(idx LaneIndex) (Lane, error)

	// LaneCount returns the number of parallel lanes between two nodes.
	LaneCount(from, to NodeID) int

	// SideLanes returns the lanes adjacent to idx on the same edge, lower
	// index first.
	SideLanes(idx LaneIndex) []LaneIndex

	// NextLane picks the lane to follow once current has been driven to its
	// end. It returns the chosen lane and the route with consumed steps removed.
	NextLane(current LaneIndex, route Route, pos r2.Vec) (LaneIndex, Route)

	// ShortestPath returns the node sequence between two nodes, both included.
	ShortestPath(from, to NodeID) ([]NodeID, error)

	// ClosestLaneIndex returns the lane nearest to pos, penalising heading mismatch.
	ClosestLaneIndex(pos r2.Vec, heading float64) (LaneIndex, error)
}

// Graph is the reference Network implementation.
//
// Lanes are added while building the road; once the road is in use the
// graph is only read. The router is rebuilt lazily after changes.
type Graph struct {
	lanes map[NodeID]map[NodeID][]Lane
	// Successor order per node, in insertion order, for deterministic scans.
	next  map[NodeID][]NodeID
	nodes []NodeID

	kind     RouterKind
	routerMu sync.Mutex
	router   Router
}

// NewGraph creates an empty graph routed with Dijkstra.
func NewGraph() *Graph {
	return &Graph{
		lanes: make(map[NodeID]map[NodeID][]Lane),
		next:  make(map[NodeID][]NodeID),
		kind:  RouterDijkstra,
	}
}

// WithRouter selects the shortest-path backend.
func (g *Graph) WithRouter(kind RouterKind) *Graph {
	g.routerMu.Lock()
	g.kind = kind
	g.router = nil
	g.routerMu.Unlock()
	return g
}

// AddLane appends a lane to the edge from -> to and returns its index.
func (g *Graph) AddLane(from, to NodeID, lane Lane) LaneIndex {
	g.addNode(from)
	g.addNode(to)
	edges := g.lanes[from]
	if _, ok := edges[to]; !ok {
		g.next[from] = append(g.next[from], to)
	}
	edges[to] = append(edges[to], lane)

	g.routerMu.Lock()
	g.router = nil
	g.routerMu.Unlock()

	return LaneIndex{From: from, To: to, Index: len(edges[to]) - 1}
}

func (g *Graph) addNode(id NodeID) {
	if _, ok := g.lanes[id]; ok {
		return
	}
	g.lanes[id] = make(map[NodeID][]Lane)
	g.nodes = append(g.nodes, id)
}

// Nodes returns the node names in insertion order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// LaneIndices returns every lane index of the graph.
func (g *Graph) LaneIndices() []LaneIndex {
	var out []LaneIndex
	for _, from := range g.nodes {
		for _, to := range g.next[from] {
			for i := range g.lanes[from][to] {
				out = append(out, LaneIndex{From: from, To: to, Index: i})
			}
		}
	}
	return out
}

func (g *Graph) Lane(idx LaneIndex) (Lane, error) {
	lanes := g.lanes[idx.From][idx.To]
	if idx.Index < 0 || idx.Index >= len(lanes) {
		return nil, &LaneError{Lane: idx, Cause: ErrLaneNotFound}
	}
	return lanes[idx.Index], nil
}

func (g *Graph) LaneCount(from, to NodeID) int {
	return len(g.lanes[from][to])
}

func (g *Graph) SideLanes(idx LaneIndex) []LaneIndex {
	count := g.LaneCount(idx.From, idx.To)
	var out []LaneIndex
	if idx.Index > 0 && idx.Index-1 < count {
		out = append(out, LaneIndex{From: idx.From, To: idx.To, Index: idx.Index - 1})
	}
	if idx.Index+1 < count {
		out = append(out, LaneIndex{From: idx.From, To: idx.To, Index: idx.Index + 1})
	}
	return out
}

func (g *Graph) NextLane(current LaneIndex, route Route, pos r2.Vec) (LaneIndex, Route) {
	var (
		nextTo  NodeID
		nextID  = -1
		haveNxt bool
	)
	if len(route) > 0 {
		if route[0].SameRoad(current) {
			route = route[1:]
		}
		if len(route) > 0 && route[0].From == current.To {
			nextTo, nextID, haveNxt = route[0].To, route[0].Index, true
		}
	}

	lane, err := g.Lane(current)
	if err != nil {
		return current, route
	}
	s, _ := lane.LocalCoordinates(pos)
	projected := lane.Position(s, 0)

	if haveNxt {
		id, _, ok := g.nextLaneGivenNextRoad(current, nextTo, nextID, projected)
		if !ok {
			return current, route
		}
		return LaneIndex{From: current.To, To: nextTo, Index: id}, route
	}

	best := LaneIndex{}
	bestDist := math.Inf(1)
	for _, to := range g.next[current.To] {
		id, dist, ok := g.nextLaneGivenNextRoad(current, to, -1, projected)
		if ok && dist < bestDist {
			best = LaneIndex{From: current.To, To: to, Index: id}
			bestDist = dist
		}
	}
	if best.IsZero() {
		return current, route
	}
	return best, route
}

// nextLaneGivenNextRoad keeps the lane index when both roads have the same
// number of lanes and otherwise picks the lane closest to pos. A negative
// nextID means no lane was requested.
func (g *Graph) nextLaneGivenNextRoad(current LaneIndex, nextTo NodeID, nextID int, pos r2.Vec) (int, float64, bool) {
	count := g.LaneCount(current.To, nextTo)
	if count == 0 {
		return 0, 0, false
	}
	if g.LaneCount(current.From, current.To) == count {
		if nextID < 0 {
			nextID = current.Index
		}
	} else {
		nextID = 0
		best := math.Inf(1)
		for i, l := range g.lanes[current.To][nextTo] {
			if d := Distance(l, pos); d < best {
				nextID, best = i, d
			}
		}
	}
	if nextID >= count {
		nextID = count - 1
	}
	return nextID, Distance(g.lanes[current.To][nextTo][nextID], pos), true
}

func (g *Graph) ShortestPath(from, to NodeID) ([]NodeID, error) {
	r, err := g.routerFor()
	if err != nil {
		return nil, err
	}
	return r.ShortestPath(from, to)
}

func (g *Graph) routerFor() (Router, error) {
	g.routerMu.Lock()
	defer g.routerMu.Unlock()
	if g.router != nil {
		return g.router, nil
	}

	var edges []Edge
	for _, from := range g.nodes {
		for _, to := range g.next[from] {
			length := math.Inf(1)
			for _, l := range g.lanes[from][to] {
				length = math.Min(length, l.Length())
			}
			edges = append(edges, Edge{From: from, To: to, Length: length})
		}
	}

	switch g.kind {
	case RouterContraction:
		r, err := NewContractionRouter(edges)
		if err != nil {
			return nil, err
		}
		g.router = r
	case RouterDijkstra, "":
		g.router = NewDijkstraRouter(edges)
	default:
		return nil, fmt.Errorf("unknown router %q", g.kind)
	}
	return g.router, nil
}

func (g *Graph) ClosestLaneIndex(pos r2.Vec, heading float64) (LaneIndex, error) {
	best := LaneIndex{}
	bestDist := math.Inf(1)
	for _, idx := range g.LaneIndices() {
		lane, _ := g.Lane(idx)
		if d := DistanceWithHeading(lane, pos, heading); d < bestDist {
			best, bestDist = idx, d
		}
	}
	if best.IsZero() {
		return LaneIndex{}, ErrEmptyNetwork
	}
	return best, nil
}
