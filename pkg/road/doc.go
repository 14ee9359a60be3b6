// Package road models the lane-graph road network the digital twin drives on.
//
// A road network is a directed graph of named nodes. Each edge between two
// nodes carries one or more parallel lanes, addressed by a LaneIndex triple
// (from node, to node, lane index). Lanes expose a local frame: a longitudinal
// coordinate s measured along the lane centre line and a lateral offset
// measured to the left of it.
//
// # Components
//
//   - Lane, StraightLane, CircularLane: lane geometry and local coordinates
//   - Graph: the reference Network implementation with route advance and
//     shortest-path queries (gonum Dijkstra or contraction hierarchies)
//   - Road: the reference World holding vehicles and road objects
//
// The twin only reads the road. Vehicle lifecycles and kinematics belong to
// the simulation that owns the World; references returned by queries are only
// meaningful for the current tick.
//
// # Basic Usage
//
//	g := road.NewGraph()
//	g.AddLane("a", "b", road.NewStraightLane(r2.Vec{}, r2.Vec{X: 200}, road.DefaultLaneWidth, 30))
//	w := road.NewRoad(g)
//	w.AddVehicle(ego)
//
//	front, rear := w.NeighbourVehicles(ego, ego.LaneIndex())
package road
