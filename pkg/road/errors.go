package road

import (
	"errors"
	"fmt"
)

var (
	// ErrLaneNotFound indicates a lane index that is not part of the network.
	ErrLaneNotFound = errors.New("lane not found")

	// ErrNodeNotFound indicates a node that is not part of the network.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoPath indicates that no route connects two nodes.
	ErrNoPath = errors.New("no path")

	// ErrEmptyNetwork indicates a query against a network without lanes.
	ErrEmptyNetwork = errors.New("network has no lanes")
)

// LaneError wraps a lane lookup failure with the offending index.
type LaneError struct {
	Lane  LaneIndex
	Cause error
}

// Error returns the error message.
func (e *LaneError) Error() string {
	return fmt.Sprintf("lane %s: %v", e.Lane, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LaneError) Unwrap() error {
	return e.Cause
}
