package engine

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNoPolicy indicates that no policy has ever been loaded. It is the
	// normal state of an autopilot-only twin, not a failure.
	ErrNoPolicy = errors.New("no policy loaded")

	// ErrExhausted indicates that the active policy has returned.
	ErrExhausted = errors.New("policy exhausted")

	// ErrInvalidCommand indicates a yielded value that is not a two-element
	// numeric command.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrNotFunction indicates a policy global that cannot be called.
	ErrNotFunction = errors.New("policy is not a function")

	// ErrSourceTooLarge indicates a program over the configured size limit.
	ErrSourceTooLarge = errors.New("policy source too large")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrClosed indicates use of a closed engine.
	ErrClosed = errors.New("engine closed")
)

// LoadStage names the part of a program that failed to load.
type LoadStage string

const (
	StageReusedCode LoadStage = "reused_code"
	StageNewCode    LoadStage = "new_code"
	StageBind       LoadStage = "bind"
	StageValidate   LoadStage = "validate"
)

// LoadError indicates that a program could not be loaded. The engine is left
// with an empty policy.
type LoadError struct {
	Program string
	Stage   LoadStage
	Cause   error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("policy %s: load failed in %s: %v", e.Program, e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// StepError indicates that pulling the next command failed. The policy has
// been reset.
type StepError struct {
	Program string
	Step    int
	Cause   error
}

// Error returns the error message.
func (e *StepError) Error() string {
	return fmt.Sprintf("policy %s: step %d failed: %v", e.Program, e.Step, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Cause
}
