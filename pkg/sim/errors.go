package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScenario indicates a scenario that cannot be built.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrNoEgo indicates a world without an ego vehicle.
	ErrNoEgo = errors.New("scenario has no ego vehicle")
)

// ScenarioError reports which part of a scenario is invalid.
type ScenarioError struct {
	Scenario string
	Field    string
	Cause    error
}

// Error returns the error message.
func (e *ScenarioError) Error() string {
	if e.Scenario == "" {
		return fmt.Sprintf("scenario %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("scenario %q %s: %v", e.Scenario, e.Field, e.Cause)
}

// Unwrap returns ErrInvalidScenario so callers can match any scenario error.
func (e *ScenarioError) Unwrap() []error {
	return []error{ErrInvalidScenario, e.Cause}
}
