// Package sim is a reference world for the twin: a lane-graph road built from a
// scenario file, kinematic vehicles driven by IDM traffic, and an episode
// runner that asks the twin for one command per tick.
//
// The world implements road.World, so the twin queries it exactly as it would
// query an external simulator.
//
// # Scenarios
//
// A scenario is a YAML document describing lanes, stop signs, the ego start
// state and the surrounding traffic:
//
//	name: overtake
//	duration: 30s
//	frequency: 10
//	lanes:
//	  - {from: a, to: b, straight: {start: [0, 0], end: [1000, 0]}}
//	  - {from: a, to: b, straight: {start: [0, 4], end: [1000, 4]}}
//	ego: {lane: [a, b, 1], s: 50, speed: 20}
//	traffic:
//	  - {lane: [a, b, 1], s: 100, speed: 15}
//
// Positions on a lane are given in its local frame (s along the lane, lat
// across it).
package sim
