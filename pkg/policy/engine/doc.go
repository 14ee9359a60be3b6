// Package engine runs externally authored driving policies inside an embedded
// Lua sandbox and turns them into a stream of control commands consumed one
// step per simulation tick.
//
// A policy program comes in two parts. ReusedCode holds previously accepted
// policy definitions and runs first; NewCode runs second in the same scope and
// is expected to define a global zero-argument function named policy. The
// engine wraps that function in a coroutine. Every call to Step resumes the
// coroutine exactly once and expects it to yield a two-element command table
// {acceleration, steering}, usually the result of autopilot().
//
// # Sandbox
//
// Each Load builds a fresh Lua state that opens only the base, table, string,
// math and coroutine libraries. File loading, printing, environment access
// and garbage collector control are removed from the base library, and the
// os, io, package, debug and channel libraries are never opened. The only
// host-provided globals are the capability functions bound to a Capabilities
// implementation:
//
//	get_ego_vehicle()                    get_target_speed()
//	get_desired_time_headway()           set_target_speed(v)
//	set_target_lane(lane)                set_desired_time_headway(tau)
//	get_speed_of(vehicle)                get_lane_of(vehicle)
//	detect_front_vehicle_in(lane, [d])   detect_rear_vehicle_in(lane, [d])
//	get_distance_between_vehicles(a, b)  get_left_lane([vehicle], [lane])
//	get_right_lane([vehicle], [lane])    detect_stop_sign_ahead()
//	get_left_to_right_cross_traffic_lanes()
//	get_right_to_left_cross_traffic_lanes()
//	autopilot()                          recover_from_stop()
//	is_safe_enter(lane, [safe_decel])    say(text)
//	turn_left_at_next_intersection()     turn_right_at_next_intersection()
//	go_straight_at_next_intersection()
//
// Vehicles are opaque userdata handles, stable for the lifetime of a loaded
// program. Lanes are {from, to, index} tables.
//
// # Failure Handling
//
// Nothing a policy does can fail a tick:
//
//   - Load failures (syntax or runtime errors, a policy global that is not a
//     function, a blown load budget) return *LoadError and leave an empty
//     policy behind.
//   - A policy that returns ends with ErrExhausted.
//   - A runtime error, a malformed yield or a blown step budget returns
//     *StepError and resets the policy.
//   - Step before any Load returns ErrNoPolicy, which callers treat as the
//     normal autopilot-only state rather than a failure.
//
// A policy that never yields is stopped by the per-step wall-clock budget.
//
// # Basic Usage
//
//	eng, err := engine.NewLuaEngine(engine.DefaultEngineConfig(), twin, logger)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	if err := eng.Load(ctx, engine.Program{Name: "overtake", NewCode: code}); err != nil {
//	    logger.Error("policy load failed", "error", err)
//	}
//	cmd, err := eng.Step(ctx)
package engine
