package config

import (
	"sync"
	"sync/atomic"
)

// current holds the process configuration used by the CLI commands.
var (
	current  atomic.Pointer[Config]
	loadOnce sync.Once
	loadErr  error
)

// Initialize loads path with DRIVETWIN_ overrides into the process
// configuration. Later calls return the first call's error and change
// nothing.
func Initialize(path string) error {
	loadOnce.Do(func() {
		var cfg *Config
		if cfg, loadErr = LoadConfigWithEnvOverrides(path); loadErr == nil {
			current.Store(cfg)
		}
	})
	return loadErr
}

// GetConfig returns the process configuration, nil before Initialize.
func GetConfig() *Config { return current.Load() }

// SetConfig installs cfg as the process configuration.
func SetConfig(cfg *Config) { current.Store(cfg) }
