package source

import (
	"context"
	"sync"

	"mercator-hq/drivetwin/pkg/policy/engine"
)

// MemorySource is an in-memory program source.
type MemorySource struct {
	mu      sync.RWMutex
	program engine.Program
}

// NewMemorySource creates a new in-memory program source.
func NewMemorySource(program engine.Program) *MemorySource {
	return &MemorySource{program: program}
}

// Load returns the stored program.
func (s *MemorySource) Load(ctx context.Context) (engine.Program, error) {
	if err := ctx.Err(); err != nil {
		return engine.Program{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.program, nil
}

// SetProgram replaces the stored program.
func (s *MemorySource) SetProgram(program engine.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = program
}
