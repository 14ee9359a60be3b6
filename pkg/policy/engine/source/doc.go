// Package source provides policy program sources for the policy engine.
//
// A source turns wherever policy code lives into an engine.Program. This
// package provides file-based and in-memory implementations.
//
// # File Source
//
// The file source reads the new code of a program from a single .lua file.
// Reused code comes from an optional provider, usually the policy library:
//
//	src := source.NewFileSource("policy.lua", lib, logger)
//	program, err := src.Load(ctx)
//
// # In-Memory Source
//
// The in-memory source is useful for tests and for programs generated at
// runtime:
//
//	src := source.NewMemorySource(engine.Program{Name: "cruise", NewCode: code})
//	program, err := src.Load(ctx)
package source
