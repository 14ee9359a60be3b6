package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DRIVETWIN_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Values absent from the file keep their defaults. The result is validated;
// environment variables are not consulted (see LoadConfigWithEnvOverrides).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of DefaultConfig. Unknown fields are rejected.
// An empty document yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named DRIVETWIN_SECTION_FIELD (for example
// DRIVETWIN_TELEMETRY_LOGGING_LEVEL). An empty path starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file over the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// envOverride binds one environment variable to a config field.
type envOverride struct {
	name  string
	apply func(string) error
}

func applyEnvOverrides(cfg *Config) error {
	overrides := []envOverride{
		{"LANE_CHANGE_ENABLED", boolVar(&cfg.Twin.LaneChangeEnabled)},
		{"POLICY_DRIVEN", boolVar(&cfg.Twin.PolicyDriven)},
		{"ENGINE_STEP_TIMEOUT", durationVar(&cfg.Twin.Engine.StepTimeout)},
		{"ENGINE_LOAD_TIMEOUT", durationVar(&cfg.Twin.Engine.LoadTimeout)},

		{"POLICY_PATH", stringVar(&cfg.Policy.Path)},
		{"POLICY_WATCH", boolVar(&cfg.Policy.Watch)},
		{"POLICY_LIBRARY_DIR", stringVar(&cfg.Policy.LibraryDir)},
		{"POLICY_GIT_ENABLED", boolVar(&cfg.Policy.Git.Enabled)},
		{"POLICY_GIT_REPOSITORY", stringVar(&cfg.Policy.Git.Repository)},
		{"POLICY_GIT_BRANCH", stringVar(&cfg.Policy.Git.Branch)},
		{"POLICY_GIT_AUTH_TOKEN", stringVar(&cfg.Policy.Git.Auth.Token)},

		{"SIMULATION_SCENARIO", stringVar(&cfg.Simulation.Scenario)},
		{"SIMULATION_DURATION", durationVar(&cfg.Simulation.Duration)},
		{"SIMULATION_FREQUENCY", intVar(&cfg.Simulation.Frequency)},
		{"SIMULATION_EPISODES", intVar(&cfg.Simulation.Episodes)},

		{"EVIDENCE_ENABLED", boolVar(&cfg.Evidence.Enabled)},
		{"EVIDENCE_BACKEND", stringVar(&cfg.Evidence.Backend)},
		{"EVIDENCE_SQLITE_PATH", stringVar(&cfg.Evidence.SQLite.Path)},
		{"EVIDENCE_SQLITE_DRIVER", stringVar(&cfg.Evidence.SQLite.Driver)},
		{"EVIDENCE_RECORDER_RECORD_TICKS", boolVar(&cfg.Evidence.Recorder.RecordTicks)},
		{"EVIDENCE_RETENTION_MAX_AGE", durationVar(&cfg.Evidence.Retention.MaxAge)},
		{"EVIDENCE_RETENTION_PRUNE_SCHEDULE", stringVar(&cfg.Evidence.Retention.PruneSchedule)},

		{"TELEMETRY_LOGGING_LEVEL", stringVar(&cfg.Telemetry.Logging.Level)},
		{"TELEMETRY_LOGGING_FORMAT", stringVar(&cfg.Telemetry.Logging.Format)},
		{"TELEMETRY_METRICS_ENABLED", boolVar(&cfg.Telemetry.Metrics.Enabled)},
		{"TELEMETRY_HEALTH_ENABLED", boolVar(&cfg.Telemetry.Health.Enabled)},

		{"SERVER_ENABLED", boolVar(&cfg.Server.Enabled)},
		{"SERVER_LISTEN_ADDRESS", stringVar(&cfg.Server.ListenAddress)},
	}

	var errs []FieldError
	for _, o := range overrides {
		val, ok := os.LookupEnv(EnvPrefix + o.name)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(val); err != nil {
			errs = append(errs, FieldError{Field: EnvPrefix + o.name, Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func stringVar(p *string) func(string) error {
	return func(v string) error {
		*p = v
		return nil
	}
}

func boolVar(p *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p = b
		return nil
	}
}

func intVar(p *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = i
		return nil
	}
}

func durationVar(p *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}
