// Package control implements the low-level control laws of the twin.
//
// Longitudinal control follows the Intelligent Driver Model (IDM): a free-road
// term pulls the vehicle towards its target speed and an interaction term
// brakes it when the gap to the object in front falls under the desired
// distance headway d*. Lateral control is a pure-pursuit style proportional
// cascade: lateral offset to lateral speed, lateral speed to heading
// correction, heading error to heading rate and finally heading rate to a
// kinematic bicycle steering angle.
//
// All divisions by quantities that may vanish go through road.NotZero and all
// outputs are clipped, so every law returns a finite command for finite input.
package control
