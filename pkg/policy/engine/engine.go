package engine

import (
	"context"
	"fmt"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"mercator-hq/drivetwin/pkg/control"
)

// Runner is the policy surface the twin drives once per tick.
type Runner interface {
	// Load replaces the active policy with program.
	Load(ctx context.Context, program Program) error

	// Step pulls exactly one command from the active policy.
	Step(ctx context.Context) (control.Command, error)

	// Reset drops the active policy, leaving an exhausted one behind.
	Reset()

	// Active reports whether a policy is currently producing commands.
	Active() bool

	// Program returns the name of the last loaded program.
	Program() string

	// Close releases the interpreter.
	Close() error
}

// LuaEngine runs policies in a sandboxed gopher-lua state.
//
// LuaEngine is not safe for concurrent use. It is driven from the tick loop.
type LuaEngine struct {
	// config contains engine configuration
	config *EngineConfig

	// caps is the capability surface bound into every state
	caps Capabilities

	// logger for structured logging
	logger *slog.Logger

	// L is the state of the last loaded program, nil after Reset
	L *lua.LState

	// binds is the capability surface of L
	binds *bindings

	// co is the coroutine running fn
	co       *lua.LState
	coCancel context.CancelFunc
	fn       *lua.LFunction

	// loaded is set by the first Load and never cleared
	loaded bool

	program string
	steps   int
	closed  bool
}

// NewLuaEngine creates a policy engine bound to caps.
func NewLuaEngine(config *EngineConfig, caps Capabilities, logger *slog.Logger) (*LuaEngine, error) {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if caps == nil {
		return nil, fmt.Errorf("capabilities cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LuaEngine{
		config: config,
		caps:   caps,
		logger: logger.With("component", "policy-engine"),
	}, nil
}

// Load runs program in a fresh sandbox and binds its policy function.
//
// A program without a policy global loads successfully and behaves as an
// already exhausted policy. On error the engine holds an empty policy.
func (e *LuaEngine) Load(ctx context.Context, program Program) error {
	if e.closed {
		return ErrClosed
	}
	e.Reset()
	e.loaded = true
	e.program = program.Name
	e.steps = 0

	if program.Size() > e.config.MaxSourceBytes {
		return &LoadError{Program: program.Name, Stage: StageValidate, Cause: fmt.Errorf("%w: %d bytes, limit %d", ErrSourceTooLarge, program.Size(), e.config.MaxSourceBytes)}
	}

	L, err := newSandbox(e.config)
	if err != nil {
		return &LoadError{Program: program.Name, Stage: StageBind, Cause: err}
	}
	binds := newBindings(e.caps)
	binds.register(L)

	loadCtx, cancel := context.WithTimeout(ctx, e.config.LoadTimeout)
	defer cancel()
	L.SetContext(loadCtx)
	fn, loadErr := e.run(L, program)
	L.RemoveContext()
	if loadErr != nil {
		L.Close()
		return loadErr
	}

	e.L, e.binds = L, binds
	if fn == nil {
		e.logger.Debug("program defines no policy", "program", program.Name)
		return nil
	}
	e.co, e.coCancel = L.NewThread()
	e.fn = fn

	e.logger.Debug("policy loaded",
		"program", program.Name,
		"source_bytes", program.Size(),
	)
	return nil
}

// run executes both code parts and returns the policy function, or nil when
// the program defines none. Only NewCode can define the policy; a policy
// global left behind by ReusedCode is cleared before NewCode runs.
func (e *LuaEngine) run(L *lua.LState, program Program) (*lua.LFunction, error) {
	if program.ReusedCode != "" {
		if err := L.DoString(program.ReusedCode); err != nil {
			return nil, &LoadError{Program: program.Name, Stage: StageReusedCode, Cause: err}
		}
		L.SetGlobal("policy", lua.LNil)
	}
	if err := L.DoString(program.NewCode); err != nil {
		return nil, &LoadError{Program: program.Name, Stage: StageNewCode, Cause: err}
	}

	switch v := L.GetGlobal("policy").(type) {
	case *lua.LNilType:
		return nil, nil
	case *lua.LFunction:
		if v.Proto != nil && v.Proto.NumParameters > 0 {
			return nil, &LoadError{Program: program.Name, Stage: StageBind, Cause: fmt.Errorf("%w: policy takes %d parameters, want 0", ErrNotFunction, v.Proto.NumParameters)}
		}
		return v, nil
	default:
		return nil, &LoadError{Program: program.Name, Stage: StageBind, Cause: fmt.Errorf("%w: got %s", ErrNotFunction, v.Type())}
	}
}

// Step resumes the policy once.
//
// It returns ErrNoPolicy before the first Load, ErrExhausted once the policy
// has returned, and *StepError when the policy fails; in the last two cases
// the policy is reset.
func (e *LuaEngine) Step(ctx context.Context) (control.Command, error) {
	if !e.loaded {
		return control.Command{}, ErrNoPolicy
	}
	if e.fn == nil {
		return control.Command{}, ErrExhausted
	}
	e.steps++
	e.binds.forget()

	stepCtx, cancel := context.WithTimeout(ctx, e.config.StepTimeout)
	defer cancel()
	co := e.co
	co.SetContext(stepCtx)
	state, err, values := e.L.Resume(co, e.fn)
	co.RemoveContext()

	switch state {
	case lua.ResumeOK:
		e.logger.Debug("policy exhausted", "program", e.program, "steps", e.steps-1)
		e.Reset()
		return control.Command{}, ErrExhausted
	case lua.ResumeYield:
		cmd, decodeErr := decodeCommand(values)
		if decodeErr != nil {
			stepErr := &StepError{Program: e.program, Step: e.steps, Cause: decodeErr}
			e.Reset()
			return control.Command{}, stepErr
		}
		return cmd, nil
	default:
		stepErr := &StepError{Program: e.program, Step: e.steps, Cause: err}
		e.Reset()
		return control.Command{}, stepErr
	}
}

// Reset drops the active policy. Later steps report ErrExhausted, or
// ErrNoPolicy if nothing was ever loaded.
func (e *LuaEngine) Reset() {
	if e.coCancel != nil {
		e.coCancel()
	}
	if e.L != nil {
		e.L.Close()
	}
	e.L, e.binds, e.co, e.coCancel, e.fn = nil, nil, nil, nil, nil
}

// Active reports whether a policy is producing commands.
func (e *LuaEngine) Active() bool {
	return e.fn != nil
}

// HasPolicy reports whether a program has ever been loaded.
func (e *LuaEngine) HasPolicy() bool {
	return e.loaded
}

// Program returns the name of the last loaded program.
func (e *LuaEngine) Program() string {
	return e.program
}

// Steps returns the number of steps taken by the current program.
func (e *LuaEngine) Steps() int {
	return e.steps
}

// Close releases the interpreter. The engine cannot be used afterwards.
func (e *LuaEngine) Close() error {
	e.Reset()
	e.closed = true
	return nil
}
