// Package cli holds the helpers shared by the drivetwin commands: output
// formatting of tabular results, episode progress reporting, signal handling
// and command error types.
package cli
