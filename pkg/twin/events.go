package twin

import (
	"time"

	"mercator-hq/drivetwin/pkg/control"
	"mercator-hq/drivetwin/pkg/road"
)

// Source tells where a tick's command came from.
type Source string

const (
	SourceNone      Source = ""
	SourcePolicy    Source = "policy"
	SourceAutopilot Source = "autopilot"
)

// EventKind identifies a twin event.
type EventKind string

const (
	EventTick              EventKind = "tick"
	EventPolicyLoaded      EventKind = "policy_loaded"
	EventLoadFailure       EventKind = "load_failure"
	EventStepFailure       EventKind = "step_failure"
	EventPolicyExhausted   EventKind = "policy_exhausted"
	EventInvalidLaneTarget EventKind = "invalid_lane_target"
	EventStopRecovered     EventKind = "stop_recovered"
	EventLaneChange        EventKind = "lane_change"
	EventRoutePlanned      EventKind = "route_planned"
	EventSay               EventKind = "say"
)

// Event is reported to observers as the twin runs.
type Event struct {
	Kind EventKind
	Tick uint64
	Time time.Time

	// Program is the last loaded program, if any.
	Program string

	// Message carries say text or a human-readable description.
	Message string

	// Err is set for failures.
	Err error

	// Lane is the lane involved in lane and route events.
	Lane road.LaneIndex

	// Command, Source and Duration are set for tick events.
	Command  control.Command
	Source   Source
	Duration time.Duration
}

// Observer receives twin events synchronously on the tick goroutine.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(e Event) { f(e) }
