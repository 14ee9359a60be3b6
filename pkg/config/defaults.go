package config

import (
	"time"

	"mercator-hq/drivetwin/pkg/twin"
)

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicyDebounceInterval = 100 * time.Millisecond
	DefaultPolicyLoadTimeout      = 5 * time.Second
	DefaultPolicyMaxFileSize      = int64(1 << 20)
	DefaultPolicyLibraryResume    = true
	DefaultPolicyGitBranch        = "main"
	DefaultPolicyGitLocalPath     = "data/policy-repo"
	DefaultPolicyGitPollInterval  = 30 * time.Second
	DefaultPolicyGitTimeout       = 30 * time.Second
	DefaultPolicyGitAuthType      = "none"

	// Simulation defaults
	DefaultSimulationEpisodes = 1

	// Evidence defaults
	DefaultEvidenceEnabled              = true
	DefaultEvidenceBackend              = "sqlite"
	DefaultEvidenceSQLitePath           = "data/evidence.db"
	DefaultEvidenceSQLiteDriver         = "sqlite3"
	DefaultEvidenceSQLiteMaxOpenConns   = 10
	DefaultEvidenceSQLiteMaxIdleConns   = 5
	DefaultEvidenceSQLiteWALMode        = true
	DefaultEvidenceSQLiteBusyTimeout    = 5 * time.Second
	DefaultEvidenceRecorderAsyncBuffer  = 1000
	DefaultEvidenceRecorderWriteTimeout = 5 * time.Second
	DefaultEvidenceRecorderRecordTicks  = true
	DefaultEvidenceRecorderMaxFieldLen  = 500
	DefaultEvidenceRetentionMaxAge      = 30 * 24 * time.Hour
	DefaultEvidenceRetentionSchedule    = "0 3 * * *"
	DefaultEvidenceRetentionArchivePath = "data/archives/"

	// Telemetry defaults
	DefaultLoggingLevel          = "info"
	DefaultLoggingFormat         = "text"
	DefaultLoggingMaxValueLength = 2048
	DefaultMetricsEnabled        = true
	DefaultMetricsPath           = "/metrics"
	DefaultMetricsNamespace      = "drivetwin"
	DefaultHealthEnabled         = true
	DefaultHealthCheckTimeout    = 5 * time.Second

	// Server defaults
	DefaultServerListenAddress   = "127.0.0.1:9090"
	DefaultServerReadTimeout     = 10 * time.Second
	DefaultServerWriteTimeout    = 10 * time.Second
	DefaultServerShutdownTimeout = 5 * time.Second
)

// DefaultConfig returns a configuration with every default applied,
// including the boolean and retention defaults that ApplyDefaults cannot
// tell from an explicit zero. LoadConfig decodes YAML on top of it.
func DefaultConfig() *Config {
	cfg := &Config{Twin: *twin.DefaultConfig()}
	cfg.Policy.LibraryResume = DefaultPolicyLibraryResume
	cfg.Evidence.Enabled = DefaultEvidenceEnabled
	cfg.Evidence.SQLite.WALMode = DefaultEvidenceSQLiteWALMode
	cfg.Evidence.Recorder.RecordTicks = DefaultEvidenceRecorderRecordTicks
	cfg.Evidence.Retention.MaxAge = DefaultEvidenceRetentionMaxAge
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any non-boolean fields that have zero
// values. It is idempotent.
func ApplyDefaults(cfg *Config) {
	applyTwinDefaults(&cfg.Twin)

	// Policy defaults
	if cfg.Policy.DebounceInterval == 0 {
		cfg.Policy.DebounceInterval = DefaultPolicyDebounceInterval
	}
	if cfg.Policy.LoadTimeout == 0 {
		cfg.Policy.LoadTimeout = DefaultPolicyLoadTimeout
	}
	if cfg.Policy.MaxFileSize == 0 {
		cfg.Policy.MaxFileSize = DefaultPolicyMaxFileSize
	}
	applyGitDefaults(&cfg.Policy.Git)

	// Simulation defaults
	if cfg.Simulation.Episodes == 0 {
		cfg.Simulation.Episodes = DefaultSimulationEpisodes
	}

	applyEvidenceDefaults(&cfg.Evidence)
	applyTelemetryDefaults(&cfg.Telemetry)

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultServerListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
}

func applyGitDefaults(gc *GitConfig) {
	if gc.Branch == "" {
		gc.Branch = DefaultPolicyGitBranch
	}
	if gc.LocalPath == "" {
		gc.LocalPath = DefaultPolicyGitLocalPath
	}
	if gc.PollInterval == 0 {
		gc.PollInterval = DefaultPolicyGitPollInterval
	}
	if gc.Timeout == 0 {
		gc.Timeout = DefaultPolicyGitTimeout
	}
	if gc.Auth.Type == "" {
		gc.Auth.Type = DefaultPolicyGitAuthType
	}
}

// applyTwinDefaults fills a twin section left empty, e.g. by "engine: {}".
func applyTwinDefaults(tc *twin.Config) {
	def := twin.DefaultConfig()
	if tc.Vehicle.MaxAcceleration == 0 {
		tc.Vehicle = def.Vehicle
	}
	if tc.LaneChange.MaxSafeDeceleration == 0 {
		tc.LaneChange = def.LaneChange
	}
	if tc.Engine.StepTimeout == 0 {
		tc.Engine.StepTimeout = def.Engine.StepTimeout
	}
	if tc.Engine.LoadTimeout == 0 {
		tc.Engine.LoadTimeout = def.Engine.LoadTimeout
	}
	if tc.Engine.MaxSourceBytes == 0 {
		tc.Engine.MaxSourceBytes = def.Engine.MaxSourceBytes
	}
	if tc.Engine.MaxStringBytes == 0 {
		tc.Engine.MaxStringBytes = def.Engine.MaxStringBytes
	}
	if tc.Engine.CallStackSize == 0 {
		tc.Engine.CallStackSize = def.Engine.CallStackSize
	}
	if tc.StoppedSpeed == 0 {
		tc.StoppedSpeed = def.StoppedSpeed
	}
	if tc.Intersection.TurnLeft == "" && tc.Intersection.Straight == "" && tc.Intersection.TurnRight == "" {
		tc.Intersection = def.Intersection
	}
}

func applyEvidenceDefaults(ec *EvidenceConfig) {
	if ec.Backend == "" {
		ec.Backend = DefaultEvidenceBackend
	}
	if ec.SQLite.Path == "" {
		ec.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if ec.SQLite.Driver == "" {
		ec.SQLite.Driver = DefaultEvidenceSQLiteDriver
	}
	if ec.SQLite.MaxOpenConns == 0 {
		ec.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpenConns
	}
	if ec.SQLite.MaxIdleConns == 0 {
		ec.SQLite.MaxIdleConns = DefaultEvidenceSQLiteMaxIdleConns
	}
	if ec.SQLite.BusyTimeout == 0 {
		ec.SQLite.BusyTimeout = DefaultEvidenceSQLiteBusyTimeout
	}
	if ec.Recorder.AsyncBuffer == 0 {
		ec.Recorder.AsyncBuffer = DefaultEvidenceRecorderAsyncBuffer
	}
	if ec.Recorder.WriteTimeout == 0 {
		ec.Recorder.WriteTimeout = DefaultEvidenceRecorderWriteTimeout
	}
	if ec.Recorder.MaxFieldLength == 0 {
		ec.Recorder.MaxFieldLength = DefaultEvidenceRecorderMaxFieldLen
	}
	if ec.Retention.PruneSchedule == "" {
		ec.Retention.PruneSchedule = DefaultEvidenceRetentionSchedule
	}
	if ec.Retention.ArchivePath == "" {
		ec.Retention.ArchivePath = DefaultEvidenceRetentionArchivePath
	}
}

func applyTelemetryDefaults(tc *TelemetryConfig) {
	if tc.Logging.Level == "" {
		tc.Logging.Level = DefaultLoggingLevel
	}
	if tc.Logging.Format == "" {
		tc.Logging.Format = DefaultLoggingFormat
	}
	if tc.Logging.MaxValueLength == 0 {
		tc.Logging.MaxValueLength = DefaultLoggingMaxValueLength
	}
	if tc.Metrics.Path == "" {
		tc.Metrics.Path = DefaultMetricsPath
	}
	if tc.Metrics.Namespace == "" {
		tc.Metrics.Namespace = DefaultMetricsNamespace
	}
	if tc.Health.CheckTimeout == 0 {
		tc.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
