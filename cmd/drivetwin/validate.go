package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/drivetwin/pkg/cli"
	"mercator-hq/drivetwin/pkg/config"
	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/policy/engine/source"
	"mercator-hq/drivetwin/pkg/policy/git"
	"mercator-hq/drivetwin/pkg/policy/library"
	"mercator-hq/drivetwin/pkg/sim"
	"mercator-hq/drivetwin/pkg/twin"
)

var validateFlags struct {
	scenario string
	policy   string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, scenario and policy",
	Long: `Check that the configuration is valid, the scenario builds a world and the
policy program loads into the twin, without running an episode.

Loading a policy runs its reused code and new code in the sandbox and
checks that a policy function is defined, so syntax errors, runtime errors
at load time and calls to removed functions are reported.

Examples:
  # Validate the config file only
  drivetwin validate --config config.yaml

  # Validate a policy against a scenario
  drivetwin validate --scenario highway.yaml --policy overtake.lua`,
	RunE: validateSetup,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.scenario, "scenario", "s", "", "scenario file (default: simulation.scenario)")
	validateCmd.Flags().StringVarP(&validateFlags.policy, "policy", "p", "", "policy file (default: policy.path)")
}

func validateSetup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Configuration valid")

	scenarioPath := validateFlags.scenario
	if scenarioPath == "" {
		scenarioPath = cfg.Simulation.Scenario
	}
	policyPath := validateFlags.policy
	if policyPath == "" && cfg.Policy.Path != "" {
		if policyPath, err = configuredPolicyFile(commandContext(cmd), cfg); err != nil {
			return cli.NewCommandError("validate", err)
		}
	}
	if scenarioPath == "" {
		if policyPath != "" {
			return cli.NewConfigError("simulation.scenario", "a scenario is required to validate a policy")
		}
		return nil
	}

	scenario, world, err := validateScenario(scenarioPath)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}
	fmt.Fprintf(out, "✓ Scenario %s valid (%d traffic vehicles, %s at %d Hz)\n",
		scenario.Name, len(world.Traffic()), scenario.Duration, scenario.Frequency)

	if policyPath == "" {
		return nil
	}
	name, err := validatePolicy(commandContext(cmd), cfg, scenario, world, policyPath)
	if err != nil {
		printPolicyError(out, err)
		return cli.NewCommandError("validate", err)
	}
	fmt.Fprintf(out, "✓ Policy %s loads\n", name)
	return nil
}

func validateScenario(path string) (*sim.Scenario, *sim.World, error) {
	scenario, err := sim.LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, nil, err
	}
	world, err := scenario.Build()
	if err != nil {
		return nil, nil, err
	}
	return scenario, world, nil
}

// configuredPolicyFile returns the local path of policy.path, cloning the
// policy repository first in git mode.
func configuredPolicyFile(ctx context.Context, cfg *config.Config) (string, error) {
	if !cfg.Policy.Git.Enabled {
		return cfg.Policy.Path, nil
	}
	gc, err := resolveGitConfig(ctx, &cfg.Policy.Git, slog.Default())
	if err != nil {
		return "", err
	}
	repo, err := git.NewRepository(gc)
	if err != nil {
		return "", err
	}
	if err := repo.Clone(ctx); err != nil {
		return "", err
	}
	return repo.File(cfg.Policy.Path), nil
}

// validatePolicy loads the policy into a policy-driven twin placed in world.
func validatePolicy(ctx context.Context, cfg *config.Config, scenario *sim.Scenario, world *sim.World, path string) (string, error) {
	var reused source.ReusedCodeProvider
	if cfg.Policy.LibraryDir != "" {
		lib, err := library.Open(cfg.Policy.LibraryDir, cfg.Policy.LibraryResume, nil)
		if err != nil {
			return "", err
		}
		reused = lib
	}

	program, err := source.NewFileSource(path, reused, nil).
		WithMaxFileSize(cfg.Policy.MaxFileSize).
		Load(ctx)
	if err != nil {
		return "", err
	}

	twinCfg := cfg.Twin
	twinCfg.PolicyDriven = true
	if scenario.Intersection != nil {
		twinCfg.Intersection = *scenario.Intersection
	}
	tw, err := twin.New(&twinCfg, nil)
	if err != nil {
		return "", err
	}
	defer tw.Close()

	tw.Reset(world, world.Ego())
	if err := tw.LoadProgram(ctx, program); err != nil {
		return "", err
	}
	return program.Name, nil
}

func printPolicyError(w io.Writer, err error) {
	fmt.Fprintf(w, "✗ Policy failed to load: %v\n", err)
	var loadErr *engine.LoadError
	if errors.As(err, &loadErr) {
		fmt.Fprintf(w, "  stage: %s\n", loadErr.Stage)
	}
}
