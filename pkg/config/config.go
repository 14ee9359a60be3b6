package config

import (
	"time"

	"mercator-hq/drivetwin/pkg/twin"
)

// Config is the root configuration structure for drivetwin.
//
// The twin settings (vehicle, lane_change, intersection, engine, ...) sit at
// the top level of the YAML file.
type Config struct {
	// Twin configures the digital twin: vehicle gains and IDM parameters,
	// MOBIL, the policy engine and the intersection layout.
	Twin twin.Config `yaml:",inline"`

	// Policy locates the policy program and the policy library.
	Policy PolicyConfig `yaml:"policy"`

	// Simulation selects the scenario and episode settings.
	Simulation SimulationConfig `yaml:"simulation"`

	// Evidence configures episode evidence recording and storage.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Telemetry configures logging, metrics and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server configures the HTTP status server exposing metrics and health.
	Server ServerConfig `yaml:"server"`
}

// PolicyConfig contains configuration for policy loading.
type PolicyConfig struct {
	// Path is the Lua policy file run as new code.
	// Empty runs the autopilot only.
	Path string `yaml:"path"`

	// Watch reloads the policy when the file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval collapses bursts of file events.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// LoadTimeout bounds reading the policy file.
	// Default: 5s
	LoadTimeout time.Duration `yaml:"load_timeout"`

	// MaxFileSize bounds the policy file size in bytes.
	// Default: 1 MiB
	MaxFileSize int64 `yaml:"max_file_size"`

	// LibraryDir is the policy library directory providing reused code.
	// Empty uses the built-in primitives only.
	LibraryDir string `yaml:"library_dir"`

	// LibraryResume keeps policies already stored in LibraryDir.
	// Default: true
	LibraryResume bool `yaml:"library_resume"`

	// Git loads the policy file from a Git repository. Path is then
	// relative to the repository root and Watch polls the remote.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures Git-backed policy loading.
type GitConfig struct {
	// Enabled clones Repository and reads the policy from the clone.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository URL (HTTPS, SSH or a local path).
	// Example: "https://github.com/team/driving-policies.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// LocalPath is where the repository is cloned.
	// Default: "data/policy-repo"
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes an existing clone before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is the time between pulls while watching.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures authentication against the remote.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type is "token", "ssh" or "none".
	// Default: "none"
	Type string `yaml:"type"`

	// Token is the HTTPS access token. Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath is the private key file. Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase decrypts SSHKeyPath, if it is encrypted.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`

	// SecretsDir holds one file per secret. Token and SSHKeyPassphrase may
	// reference secrets as ${secret:name}; these are looked up in
	// DRIVETWIN_SECRET_<NAME> first, then in SecretsDir.
	SecretsDir string `yaml:"secrets_dir"`
}

// SimulationConfig contains configuration for the reference simulation.
type SimulationConfig struct {
	// Scenario is the scenario YAML file.
	Scenario string `yaml:"scenario"`

	// Duration overrides the scenario's episode length when set.
	Duration time.Duration `yaml:"duration"`

	// Frequency overrides the scenario's tick frequency when set.
	Frequency int `yaml:"frequency"`

	// Episodes is the number of episodes to run.
	// Default: 1
	Episodes int `yaml:"episodes"`
}

// EvidenceConfig configures recording of per-tick evidence. Defaults are
// listed in defaults.go.
type EvidenceConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend"`

	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Retention RetentionConfig `yaml:"retention"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`

	// Driver selects mattn ("sqlite3", cgo) or modernc ("sqlite", pure Go).
	Driver string `yaml:"driver"`

	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	WALMode      bool          `yaml:"wal_mode"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

type RecorderConfig struct {
	// AsyncBuffer is the number of records queued ahead of storage; a full
	// queue drops records.
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RecordTicks adds a record per tick on top of the policy and lane
	// change events.
	RecordTicks bool `yaml:"record_ticks"`

	// MaxFieldLength truncates message and error text.
	MaxFieldLength int `yaml:"max_field_length"`
}

type RetentionConfig struct {
	// MaxAge of 0 keeps records forever; MaxRecords of 0 keeps any number.
	MaxAge     time.Duration `yaml:"max_age"`
	MaxRecords int64         `yaml:"max_records"`

	// PruneSchedule is a standard cron expression or descriptor such as
	// "@daily". Empty disables scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`

	ArchiveBeforeDelete bool   `yaml:"archive_before_delete"`
	ArchivePath         string `yaml:"archive_path"`
}

type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
}

type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json, text or console (text without timestamps).
	Format string `yaml:"format"`

	AddSource bool `yaml:"add_source"`

	// MaxValueLength truncates long string values. 0 disables truncation.
	MaxValueLength int `yaml:"max_value_length"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is where the status server exposes the registry.
	Path string `yaml:"path"`

	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// TickDurationBuckets are the tick duration histogram bounds in seconds.
	TickDurationBuckets []float64 `yaml:"tick_duration_buckets"`
}

type HealthConfig struct {
	// Enabled mounts /health, /ready and /version on the status server.
	Enabled bool `yaml:"enabled"`

	// CheckTimeout bounds each readiness check.
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// MaxDroppedRecords is the number of dropped evidence records readiness
	// tolerates.
	MaxDroppedRecords int64 `yaml:"max_dropped_records"`
}

// ServerConfig configures the status HTTP server started by run.
type ServerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
