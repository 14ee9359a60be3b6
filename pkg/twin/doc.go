// Package twin implements the vehicle digital twin: the per-tick controller
// that drives the ego vehicle with IDM car following, optional MOBIL lane
// changes and externally supplied policy code.
//
// # Tick
//
// Act is called once per simulation tick. When a policy is running, exactly
// one command is pulled from it. When there is no policy, or the policy has
// returned or failed, the autopilot command is used instead:
//
//  1. advance the followed lane once the ego has driven past its end
//  2. let the lane-change strategy retarget the lane, if enabled
//  3. steer towards the target lane and accelerate with IDM towards the
//     target speed, treating the nearest stop sign not yet recovered from as
//     a stationary leader
//
// A tick always produces a command. Policy failures are reported to
// observers and logged, never returned to the caller.
//
// # Capabilities
//
// Twin implements engine.Capabilities, the functions policy code may call.
// They read ground truth from the bound road.World and change the twin's
// targets: speed, lane, time headway and route. Stop signs stay forced stop
// targets until a policy calls recover_from_stop while the ego is stopped.
//
// Twin is not safe for concurrent use. It is driven from the tick loop.
package twin
