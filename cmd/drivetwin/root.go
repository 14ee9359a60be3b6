package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/drivetwin/pkg/cli"
	"mercator-hq/drivetwin/pkg/config"
	"mercator-hq/drivetwin/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "drivetwin",
	Short: "Drivetwin - vehicle digital twin with policy-driven control",
	Long: `Drivetwin is a vehicle digital twin. It computes longitudinal and lateral
commands for an ego vehicle on a lane-graph road, using an IDM/MOBIL autopilot
and sandboxed Lua policies that can be hot-reloaded.

It provides:
  - Episode simulation of YAML scenarios
  - Policy loading, validation and a reusable policy library
  - Evidence recording of every twin event
  - Prometheus metrics and health endpoints`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig initializes the process configuration from --config and the
// DRIVETWIN_ environment.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("config", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.GetConfig(), nil
}

// setupLogging installs the configured logger as the default. --verbose
// forces debug level.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	lc := cfg.Telemetry.Logging
	if verbose {
		lc.Level = "debug"
	}
	logger, err := logging.Setup(logging.Config{
		Level:          lc.Level,
		Format:         lc.Format,
		AddSource:      lc.AddSource,
		MaxValueLength: lc.MaxValueLength,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
