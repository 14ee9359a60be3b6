package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
vehicle:
  desired_time_headway: 2.0
lane_change_enabled: true
lane_change:
  politeness: 0.5
engine:
  step_timeout: 50ms
policy:
  path: policies/overtake.lua
  watch: true
simulation:
  scenario: scenarios/highway.yaml
  episodes: 3
evidence:
  backend: sqlite
  sqlite:
    path: ./test-evidence.db
    driver: sqlite
    wal_mode: false
  recorder:
    record_ticks: false
telemetry:
  logging:
    level: debug
    format: json
server:
  enabled: true
  listen_address: "0.0.0.0:9100"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"time headway", cfg.Twin.Vehicle.DesiredTimeHeadway, 2.0},
		{"untouched vehicle field keeps default", cfg.Twin.Vehicle.MaxAcceleration, 6.0},
		{"lane change enabled", cfg.Twin.LaneChangeEnabled, true},
		{"politeness", cfg.Twin.LaneChange.Politeness, 0.5},
		{"step timeout", cfg.Twin.Engine.StepTimeout, 50 * time.Millisecond},
		{"load timeout default", cfg.Twin.Engine.LoadTimeout, time.Second},
		{"policy driven default", cfg.Twin.PolicyDriven, true},
		{"policy path", cfg.Policy.Path, "policies/overtake.lua"},
		{"policy watch", cfg.Policy.Watch, true},
		{"library resume default", cfg.Policy.LibraryResume, true},
		{"episodes", cfg.Simulation.Episodes, 3},
		{"sqlite driver", cfg.Evidence.SQLite.Driver, "sqlite"},
		{"explicit wal false", cfg.Evidence.SQLite.WALMode, false},
		{"explicit record ticks false", cfg.Evidence.Recorder.RecordTicks, false},
		{"evidence enabled default", cfg.Evidence.Enabled, true},
		{"retention default", cfg.Evidence.Retention.MaxAge, DefaultEvidenceRetentionMaxAge},
		{"log level", cfg.Telemetry.Logging.Level, "debug"},
		{"metrics namespace default", cfg.Telemetry.Metrics.Namespace, "drivetwin"},
		{"server address", cfg.Server.ListenAddress, "0.0.0.0:9100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfig_EmptyFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("empty file differs from defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown field", "evidence:\n  backend: sqlite\n  postgres: {}\n", "field postgres not found"},
		{"malformed yaml", "policy: [unclosed", "failed to parse"},
		{"bad backend", "evidence:\n  backend: s3\n", "evidence.backend"},
		{"bad cron", "evidence:\n  retention:\n    prune_schedule: \"every day\"\n", "evidence.retention.prune_schedule"},
		{"watch without path", "policy:\n  watch: true\n", "policy.watch"},
		{"invalid vehicle", "vehicle:\n  desired_time_headway: -1\n", "twin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() error = nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "evidence:\n  backend: sqlite\n")

	t.Setenv("DRIVETWIN_EVIDENCE_BACKEND", "memory")
	t.Setenv("DRIVETWIN_POLICY_PATH", "/tmp/p.lua")
	t.Setenv("DRIVETWIN_POLICY_WATCH", "true")
	t.Setenv("DRIVETWIN_SIMULATION_DURATION", "15s")
	t.Setenv("DRIVETWIN_SIMULATION_EPISODES", "4")
	t.Setenv("DRIVETWIN_LANE_CHANGE_ENABLED", "true")
	t.Setenv("DRIVETWIN_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}

	if cfg.Evidence.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Evidence.Backend)
	}
	if cfg.Policy.Path != "/tmp/p.lua" || !cfg.Policy.Watch {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.Simulation.Duration != 15*time.Second || cfg.Simulation.Episodes != 4 {
		t.Errorf("Simulation = %+v", cfg.Simulation)
	}
	if !cfg.Twin.LaneChangeEnabled {
		t.Error("LaneChangeEnabled = false")
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("DRIVETWIN_SERVER_ENABLED", "1")
	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if !cfg.Server.Enabled {
		t.Error("Server.Enabled = false")
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValue(t *testing.T) {
	t.Setenv("DRIVETWIN_SIMULATION_FREQUENCY", "fast")
	t.Setenv("DRIVETWIN_EVIDENCE_ENABLED", "maybe")

	_, err := LoadConfigWithEnvOverrides("")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("got %d field errors, want 2: %v", len(verr.Errors), verr)
	}
}
