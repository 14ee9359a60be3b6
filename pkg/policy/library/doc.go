// Package library persists accepted policies so later programs can reuse them.
//
// A library directory holds one code file per accepted policy and a YAML
// index:
//
//	<dir>/policies.yaml
//	<dir>/code/<name>.lua
//	<dir>/description/<name>.txt
//
// Re-adding an existing name keeps the older files and writes the new code to
// <name>V<n>.lua, n starting at 2. The index always points at the newest
// version.
//
// ReusedCode concatenates every accepted policy followed by the built-in
// primitives. The result is used as the reused code of programs loaded into
// the policy engine, so a new policy can call any accepted policy by name.
package library
