package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/drivetwin/pkg/telemetry/logging"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "evidence.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	if err := cfg.Twin.Validate(); err != nil {
		errs = append(errs, FieldError{Field: "twin", Message: err.Error()})
	}
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateSimulation(&cfg.Simulation)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateServer(&cfg.Server)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validatePolicy(pc *PolicyConfig) []FieldError {
	var errs []FieldError
	if pc.Watch && pc.Path == "" {
		errs = append(errs, FieldError{Field: "policy.watch", Message: "requires policy.path"})
	}
	if pc.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "policy.debounce_interval", Message: "must not be negative"})
	}
	if pc.LoadTimeout <= 0 {
		errs = append(errs, FieldError{Field: "policy.load_timeout", Message: "must be positive"})
	}
	if pc.MaxFileSize <= 0 {
		errs = append(errs, FieldError{Field: "policy.max_file_size", Message: "must be positive"})
	}
	if pc.Git.Enabled {
		errs = append(errs, validateGit(&pc.Git, pc.Path)...)
	}
	return errs
}

func validateGit(gc *GitConfig, path string) []FieldError {
	var errs []FieldError
	if gc.Repository == "" {
		errs = append(errs, FieldError{Field: "policy.git.repository", Message: "is required when git is enabled"})
	}
	if path == "" {
		errs = append(errs, FieldError{Field: "policy.path", Message: "is required when git is enabled"})
	} else if filepath.IsAbs(path) {
		errs = append(errs, FieldError{Field: "policy.path", Message: "must be relative to the repository root when git is enabled"})
	}
	if gc.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "policy.git.poll_interval", Message: "must be positive"})
	}
	if gc.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "policy.git.timeout", Message: "must be positive"})
	}
	switch gc.Auth.Type {
	case "none":
	case "token":
		if gc.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.token", Message: "is required for token auth"})
		}
	case "ssh":
		if gc.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "policy.git.auth.ssh_key_path", Message: "is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{Field: "policy.git.auth.type", Message: fmt.Sprintf("unknown auth type %q (want token, ssh or none)", gc.Auth.Type)})
	}
	return errs
}

func validateSimulation(sc *SimulationConfig) []FieldError {
	var errs []FieldError
	if sc.Duration < 0 {
		errs = append(errs, FieldError{Field: "simulation.duration", Message: "must not be negative"})
	}
	if sc.Frequency < 0 {
		errs = append(errs, FieldError{Field: "simulation.frequency", Message: "must not be negative"})
	}
	if sc.Episodes < 1 {
		errs = append(errs, FieldError{Field: "simulation.episodes", Message: "must be at least 1"})
	}
	return errs
}

func validateEvidence(ec *EvidenceConfig) []FieldError {
	if !ec.Enabled {
		return nil
	}

	var errs []FieldError
	switch ec.Backend {
	case "memory":
	case "sqlite":
		if ec.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "evidence.sqlite.path", Message: "must not be empty"})
		}
		if ec.SQLite.Driver != "sqlite3" && ec.SQLite.Driver != "sqlite" {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.driver",
				Message: fmt.Sprintf("must be \"sqlite3\" or \"sqlite\", got %q", ec.SQLite.Driver),
			})
		}
		if ec.SQLite.MaxIdleConns > ec.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{Field: "evidence.sqlite.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("must be \"sqlite\" or \"memory\", got %q", ec.Backend),
		})
	}

	if ec.Recorder.AsyncBuffer <= 0 {
		errs = append(errs, FieldError{Field: "evidence.recorder.async_buffer", Message: "must be positive"})
	}
	if ec.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "evidence.recorder.write_timeout", Message: "must be positive"})
	}

	if ec.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "evidence.retention.max_age", Message: "must not be negative"})
	}
	if ec.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "evidence.retention.max_records", Message: "must not be negative"})
	}
	if _, err := cron.ParseStandard(ec.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{Field: "evidence.retention.prune_schedule", Message: err.Error()})
	}
	return errs
}

func validateTelemetry(tc *TelemetryConfig) []FieldError {
	var errs []FieldError
	if _, err := logging.ParseLevel(tc.Logging.Level); err != nil {
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: err.Error()})
	}
	switch tc.Logging.Format {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json, text or console, got %q", tc.Logging.Format),
		})
	}
	if !strings.HasPrefix(tc.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	for i := 1; i < len(tc.Metrics.TickDurationBuckets); i++ {
		if tc.Metrics.TickDurationBuckets[i] <= tc.Metrics.TickDurationBuckets[i-1] {
			errs = append(errs, FieldError{Field: "telemetry.metrics.tick_duration_buckets", Message: "must be increasing"})
			break
		}
	}
	if tc.Health.CheckTimeout <= 0 {
		errs = append(errs, FieldError{Field: "telemetry.health.check_timeout", Message: "must be positive"})
	}
	return errs
}

func validateServer(sc *ServerConfig) []FieldError {
	if !sc.Enabled {
		return nil
	}
	var errs []FieldError
	if _, _, err := net.SplitHostPort(sc.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: err.Error()})
	}
	if sc.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must be positive"})
	}
	return errs
}
