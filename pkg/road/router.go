package road

import (
	"fmt"
	"math"

	"github.com/LdDl/ch"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// RouterKind selects the shortest-path backend of a Graph.
type RouterKind string

const (
	// RouterDijkstra runs gonum's Dijkstra on every query.
	RouterDijkstra RouterKind = "dijkstra"

	// RouterContraction preprocesses the graph into contraction hierarchies.
	RouterContraction RouterKind = "contraction"
)

// Edge is a weighted node-to-node connection used to build a Router.
type Edge struct {
	From   NodeID
	To     NodeID
	Length float64
}

// Router answers shortest-path queries between nodes.
type Router interface {
	ShortestPath(from, to NodeID) ([]NodeID, error)
}

// nodeIDs maps node names to dense integer ids shared by both backends.
type nodeIDs struct {
	ids   map[NodeID]int64
	names []NodeID
}

func newNodeIDs(edges []Edge) *nodeIDs {
	n := &nodeIDs{ids: make(map[NodeID]int64)}
	for _, e := range edges {
		n.add(e.From)
		n.add(e.To)
	}
	return n
}

func (n *nodeIDs) add(id NodeID) int64 {
	if v, ok := n.ids[id]; ok {
		return v
	}
	v := int64(len(n.names))
	n.ids[id] = v
	n.names = append(n.names, id)
	return v
}

func (n *nodeIDs) lookup(from, to NodeID) (int64, int64, error) {
	f, ok := n.ids[from]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrNodeNotFound, from)
	}
	t, ok := n.ids[to]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrNodeNotFound, to)
	}
	return f, t, nil
}

// DijkstraRouter computes paths with gonum's Dijkstra implementation.
type DijkstraRouter struct {
	nodes *nodeIDs
	g     *simple.WeightedDirectedGraph
}

// NewDijkstraRouter builds a router over edges.
func NewDijkstraRouter(edges []Edge) *DijkstraRouter {
	r := &DijkstraRouter{
		nodes: newNodeIDs(edges),
		g:     simple.NewWeightedDirectedGraph(0, math.Inf(1)),
	}
	for _, id := range r.nodes.ids {
		r.g.AddNode(simple.Node(id))
	}
	for _, e := range edges {
		f, t := r.nodes.ids[e.From], r.nodes.ids[e.To]
		if f == t {
			continue
		}
		r.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(f), T: simple.Node(t), W: e.Length})
	}
	return r
}

// ShortestPath returns the node sequence from one node to another, both included.
func (r *DijkstraRouter) ShortestPath(from, to NodeID) ([]NodeID, error) {
	f, t, err := r.nodes.lookup(from, to)
	if err != nil {
		return nil, err
	}
	shortest := path.DijkstraFrom(r.g.Node(f), r.g)
	nodes, _ := shortest.To(t)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
	}
	out := make([]NodeID, len(nodes))
	for i, n := range nodes {
		out[i] = r.nodes.names[n.ID()]
	}
	return out, nil
}

// ContractionRouter answers queries on a contraction hierarchy.
type ContractionRouter struct {
	nodes *nodeIDs
	g     ch.Graph
}

// NewContractionRouter builds and contracts a graph over edges.
func NewContractionRouter(edges []Edge) (*ContractionRouter, error) {
	r := &ContractionRouter{nodes: newNodeIDs(edges)}
	for _, name := range r.nodes.names {
		if err := r.g.CreateVertex(r.nodes.ids[name]); err != nil {
			return nil, fmt.Errorf("create vertex %q: %w", name, err)
		}
	}
	for _, e := range edges {
		f, t := r.nodes.ids[e.From], r.nodes.ids[e.To]
		if f == t {
			continue
		}
		if err := r.g.AddEdge(f, t, e.Length); err != nil {
			return nil, fmt.Errorf("add edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	r.g.PrepareContractionHierarchies()
	return r, nil
}

// ShortestPath returns the node sequence from one node to another, both included.
func (r *ContractionRouter) ShortestPath(from, to NodeID) ([]NodeID, error) {
	f, t, err := r.nodes.lookup(from, to)
	if err != nil {
		return nil, err
	}
	if f == t {
		return []NodeID{from}, nil
	}
	cost, vertices := r.g.ShortestPath(f, t)
	if cost < 0 || len(vertices) == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from, to)
	}
	out := make([]NodeID, len(vertices))
	for i, v := range vertices {
		out[i] = r.nodes.names[v]
	}
	return out, nil
}
