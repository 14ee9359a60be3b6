package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"mercator-hq/drivetwin/pkg/cli"
	"mercator-hq/drivetwin/pkg/config"
	"mercator-hq/drivetwin/pkg/server"
	"mercator-hq/drivetwin/pkg/sim"
	"mercator-hq/drivetwin/pkg/telemetry/health"
)

type runOptions struct {
	scenario string
	policy   string
	episodes int
	watch    bool
	logLevel string
	listen   string
	format   string
	hold     bool
	progress bool
}

var runFlags runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run simulation episodes",
	Long: `Run episodes of a scenario with the digital twin driving the ego vehicle.

Each episode builds a fresh world from the scenario, resets the twin and
ticks until the episode duration elapses, the ego crashes or leaves the
road. With a policy configured the policy file is loaded at the start of
every episode and, with --watch, reloaded whenever it changes.

While running, the status server exposes /metrics, /health, /ready and
/version.

Examples:
  # Run the scenario named in the config
  drivetwin run --config config.yaml

  # Run a scenario with a policy for five episodes
  drivetwin run --scenario highway.yaml --policy overtake.lua --episodes 5

  # Keep serving metrics after the last episode
  drivetwin run --hold`,
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.scenario, "scenario", "s", "", "override scenario file")
	runCmd.Flags().StringVarP(&runFlags.policy, "policy", "p", "", "override policy file")
	runCmd.Flags().IntVarP(&runFlags.episodes, "episodes", "n", 0, "override number of episodes")
	runCmd.Flags().BoolVarP(&runFlags.watch, "watch", "w", false, "reload the policy file when it changes")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVarP(&runFlags.listen, "listen", "l", "", "override status server listen address")
	runCmd.Flags().StringVar(&runFlags.format, "format", "text", "result format: text, json, csv")
	runCmd.Flags().BoolVar(&runFlags.hold, "hold", false, "keep the status server running after the last episode until interrupted")
	runCmd.Flags().BoolVar(&runFlags.progress, "progress", false, "show a progress bar on stderr")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("config", err.Error())
	}

	format, err := cli.ParseOutputFormat(runFlags.format)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(commandContext(cmd))
	defer stop()

	sess, err := newSession(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer sess.Close()

	var srv *server.Server
	if cfg.Server.Enabled {
		srv, err = startStatusServer(cfg, sess, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer srv.Shutdown(context.Background())
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Status server listening on http://%s\n", srv.Addr())
	}

	if err := sess.watch(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	results, runErr := runEpisodes(ctx, sess, cfg.Simulation.Episodes, cmd.ErrOrStderr())
	if err := writeResults(cmd.OutOrStdout(), format, results); err != nil {
		return cli.NewCommandError("run", err)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted, stopping")
			return nil
		}
		return cli.NewCommandError("run", runErr)
	}

	if runFlags.hold && srv != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop")
		select {
		case <-ctx.Done():
		case err := <-srv.Err():
			return cli.NewCommandError("run", err)
		}
	}
	return nil
}

func applyRunFlags(cfg *config.Config) {
	if runFlags.scenario != "" {
		cfg.Simulation.Scenario = runFlags.scenario
	}
	if runFlags.policy != "" {
		cfg.Policy.Path = runFlags.policy
		cfg.Twin.PolicyDriven = true
	}
	if runFlags.episodes > 0 {
		cfg.Simulation.Episodes = runFlags.episodes
	}
	if runFlags.watch {
		cfg.Policy.Watch = true
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.listen != "" {
		cfg.Server.ListenAddress = runFlags.listen
		cfg.Server.Enabled = true
	}
}

func startStatusServer(cfg *config.Config, sess *session, logger *slog.Logger) (*server.Server, error) {
	srv := server.New(&cfg.Server, logger)
	if sess.collector != nil {
		srv.Handle(cfg.Telemetry.Metrics.Path, sess.collector.Handler())
	}
	if cfg.Telemetry.Health.Enabled {
		health.Register(srv.Mux(), sess.checker, health.VersionInfo{
			Version:   Version,
			Commit:    GitCommit,
			BuildTime: BuildDate,
			GoVersion: runtime.Version(),
		})
	}
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return srv, nil
}

// runEpisodes runs n episodes and returns the results of those that
// started. It stops at the first error.
func runEpisodes(ctx context.Context, sess *session, n int, progressOut io.Writer) ([]*sim.Result, error) {
	var progress cli.ProgressReporter
	if runFlags.progress {
		progress = cli.NewProgressReporter(progressOut, "episodes")
		progress.Start(int64(n))
	}

	results := make([]*sim.Result, 0, n)
	for i := 0; i < n; i++ {
		res, err := sess.runEpisode(ctx)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return results, err
		}
		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}
	if progress != nil {
		progress.Finish()
	}
	return results, nil
}

func writeResults(w io.Writer, format cli.OutputFormat, results []*sim.Result) error {
	table := &cli.Table{Columns: []string{
		"episode_id", "scenario", "termination", "ticks", "policy_ticks",
		"autopilot_ticks", "reloads", "reload_failures", "distance", "final_speed", "final_lane",
	}}
	for _, r := range results {
		table.Append(r.EpisodeID, r.Scenario, r.Termination, r.Ticks, r.PolicyTicks,
			r.AutopilotTicks, r.Reloads, r.ReloadFailures,
			fmt.Sprintf("%.1f", r.Distance), fmt.Sprintf("%.2f", r.FinalSpeed), r.FinalLane)
	}
	return cli.NewFormatter(format).FormatTo(w, table)
}
