package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		fields []string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{
			name:   "memory backend ignores sqlite settings",
			modify: func(c *Config) { c.Evidence.Backend = "memory"; c.Evidence.SQLite.Driver = "postgres" },
		},
		{
			name:   "disabled evidence is not checked",
			modify: func(c *Config) { c.Evidence.Enabled = false; c.Evidence.Backend = "" },
		},
		{
			name:   "unknown driver",
			modify: func(c *Config) { c.Evidence.SQLite.Driver = "postgres" },
			fields: []string{"evidence.sqlite.driver"},
		},
		{
			name:   "idle above open",
			modify: func(c *Config) { c.Evidence.SQLite.MaxIdleConns = 20 },
			fields: []string{"evidence.sqlite.max_idle_conns"},
		},
		{
			name:   "negative retention",
			modify: func(c *Config) { c.Evidence.Retention.MaxAge = -time.Hour; c.Evidence.Retention.MaxRecords = -1 },
			fields: []string{"evidence.retention.max_age", "evidence.retention.max_records"},
		},
		{
			name:   "bad logging",
			modify: func(c *Config) { c.Telemetry.Logging.Level = "trace"; c.Telemetry.Logging.Format = "xml" },
			fields: []string{"telemetry.logging.level", "telemetry.logging.format"},
		},
		{
			name:   "metrics path",
			modify: func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			fields: []string{"telemetry.metrics.path"},
		},
		{
			name:   "unsorted buckets",
			modify: func(c *Config) { c.Telemetry.Metrics.TickDurationBuckets = []float64{0.1, 0.01} },
			fields: []string{"telemetry.metrics.tick_duration_buckets"},
		},
		{
			name:   "server address",
			modify: func(c *Config) { c.Server.Enabled = true; c.Server.ListenAddress = "9090" },
			fields: []string{"server.listen_address"},
		},
		{
			name:   "episodes",
			modify: func(c *Config) { c.Simulation.Episodes = 0; c.Simulation.Frequency = -1 },
			fields: []string{"simulation.frequency", "simulation.episodes"},
		},
		{
			name: "git policy",
			modify: func(c *Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.Repository = "https://example.com/policies.git"
				c.Policy.Path = "highway/overtake.lua"
			},
		},
		{
			name:   "git without repository or path",
			modify: func(c *Config) { c.Policy.Git.Enabled = true },
			fields: []string{"policy.git.repository", "policy.path"},
		},
		{
			name: "git absolute path and bad auth",
			modify: func(c *Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.Repository = "https://example.com/policies.git"
				c.Policy.Path = "/etc/overtake.lua"
				c.Policy.Git.Auth.Type = "kerberos"
			},
			fields: []string{"policy.path", "policy.git.auth.type"},
		},
		{
			name: "git token auth without token",
			modify: func(c *Config) {
				c.Policy.Git.Enabled = true
				c.Policy.Git.Repository = "https://example.com/policies.git"
				c.Policy.Path = "overtake.lua"
				c.Policy.Git.Auth.Type = "token"
			},
			fields: []string{"policy.git.auth.token"},
		},
		{
			name:   "twin",
			modify: func(c *Config) { c.Twin.StoppedSpeed = -1 },
			fields: []string{"twin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			var got []string
			for _, fe := range verr.Errors {
				got = append(got, fe.Field)
			}
			if strings.Join(got, ",") != strings.Join(tt.fields, ",") {
				t.Errorf("fields = %v, want %v", got, tt.fields)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("Error() = %q", got)
	}
	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := two.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("Error() = %q", got)
	}
}
