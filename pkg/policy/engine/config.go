package engine

import (
	"fmt"
	"time"
)

// EngineConfig contains configuration for the policy engine.
type EngineConfig struct {
	// StepTimeout is the wall-clock budget of a single Step.
	// A policy that does not yield within it fails the step.
	// Default: 100ms.
	StepTimeout time.Duration `yaml:"step_timeout"`

	// LoadTimeout is the wall-clock budget for running ReusedCode and NewCode.
	// Default: 1s.
	LoadTimeout time.Duration `yaml:"load_timeout"`

	// MaxSourceBytes bounds the combined size of ReusedCode and NewCode.
	// Default: 1 MiB.
	MaxSourceBytes int `yaml:"max_source_bytes"`

	// MaxStringBytes caps the strings string.rep, string.gsub and
	// table.concat may build. string.format widths are limited to two
	// digits as in reference Lua.
	// Default: 1 MiB.
	MaxStringBytes int `yaml:"max_string_bytes"`

	// CallStackSize is the Lua call stack depth.
	// Default: 256.
	CallStackSize int `yaml:"call_stack_size"`
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		StepTimeout:    100 * time.Millisecond,
		LoadTimeout:    time.Second,
		MaxSourceBytes: 1 << 20,
		MaxStringBytes: 1 << 20,
		CallStackSize:  256,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.StepTimeout <= 0 {
		return fmt.Errorf("%w: step timeout must be positive", ErrInvalidConfig)
	}
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("%w: load timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxSourceBytes <= 0 {
		return fmt.Errorf("%w: max source bytes must be positive", ErrInvalidConfig)
	}
	if c.MaxStringBytes <= 0 {
		return fmt.Errorf("%w: max string bytes must be positive", ErrInvalidConfig)
	}
	if c.CallStackSize <= 0 {
		return fmt.Errorf("%w: call stack size must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithStepTimeout sets the per-step budget.
func (c *EngineConfig) WithStepTimeout(timeout time.Duration) *EngineConfig {
	c.StepTimeout = timeout
	return c
}

// WithLoadTimeout sets the load budget.
func (c *EngineConfig) WithLoadTimeout(timeout time.Duration) *EngineConfig {
	c.LoadTimeout = timeout
	return c
}

// WithMaxStringBytes sets the cap on strings built by the string library.
func (c *EngineConfig) WithMaxStringBytes(n int) *EngineConfig {
	c.MaxStringBytes = n
	return c
}

// WithMaxSourceBytes sets the program size limit.
func (c *EngineConfig) WithMaxSourceBytes(n int) *EngineConfig {
	c.MaxSourceBytes = n
	return c
}
