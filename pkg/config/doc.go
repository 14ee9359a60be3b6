// Package config loads drivetwin configuration from YAML with environment
// variable overrides.
//
// # Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Values are applied in order: defaults (defaults.go), the YAML file, then
// DRIVETWIN_SECTION_FIELD environment variables, for example:
//
//   - DRIVETWIN_POLICY_PATH overrides policy.path
//   - DRIVETWIN_EVIDENCE_SQLITE_DRIVER overrides evidence.sqlite.driver
//   - DRIVETWIN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The result is validated and every field error is reported at once.
//
// # Layout
//
// The twin settings are inlined at the top level:
//
//	vehicle:
//	  desired_time_headway: 1.5
//	lane_change_enabled: true
//	engine:
//	  step_timeout: 100ms
//	policy:
//	  path: policies/overtake.lua
//	  watch: true
//	simulation:
//	  scenario: scenarios/highway.yaml
//	evidence:
//	  backend: sqlite
//	  sqlite:
//	    driver: sqlite
//	telemetry:
//	  logging:
//	    level: debug
//	server:
//	  enabled: true
//
// # Singleton
//
// Initialize, GetConfig and SetConfig keep one process-wide Config for
// the CLI. Library code takes its configuration as a parameter.
package config
