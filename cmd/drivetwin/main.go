// Drivetwin runs a vehicle digital twin through simulated driving episodes.
//
// The twin drives an ego vehicle with an IDM/MOBIL autopilot and, when a
// policy program is loaded, with commands yielded by a sandboxed Lua policy.
// Every episode can be recorded as evidence and inspected afterwards.
//
// Usage:
//
//	# Run the configured scenario
//	drivetwin run --config config.yaml
//
//	# Run three episodes of a scenario with a policy, reloading it on change
//	drivetwin run --scenario highway.yaml --policy overtake.lua --episodes 3 --watch
//
//	# Check a configuration, scenario and policy without running
//	drivetwin validate --scenario highway.yaml --policy overtake.lua
//
//	# Inspect recorded evidence
//	drivetwin events query --kind lane_change,load_failure
//	drivetwin events episodes
//
//	# Manage the policy library
//	drivetwin library add keep_right --file keep_right.lua
package main

func main() {
	Execute()
}
