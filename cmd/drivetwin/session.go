package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/drivetwin/pkg/config"
	"mercator-hq/drivetwin/pkg/evidence"
	"mercator-hq/drivetwin/pkg/evidence/recorder"
	"mercator-hq/drivetwin/pkg/evidence/retention"
	"mercator-hq/drivetwin/pkg/policy/engine"
	"mercator-hq/drivetwin/pkg/policy/engine/source"
	"mercator-hq/drivetwin/pkg/policy/git"
	"mercator-hq/drivetwin/pkg/policy/library"
	"mercator-hq/drivetwin/pkg/policy/manager"
	"mercator-hq/drivetwin/pkg/secrets"
	"mercator-hq/drivetwin/pkg/sim"
	"mercator-hq/drivetwin/pkg/telemetry/health"
	"mercator-hq/drivetwin/pkg/telemetry/logging"
	"mercator-hq/drivetwin/pkg/telemetry/metrics"
	"mercator-hq/drivetwin/pkg/twin"
)

// session owns everything one run command needs across its episodes.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	scenario *sim.Scenario
	twin     *twin.Twin

	library   *library.Library
	source    engine.Source
	manager   *manager.Manager
	repo      *git.Repository
	gitWatch  *git.Watcher
	collector *metrics.Collector
	store     evidenceStore
	recorder  *recorder.Recorder
	pruner    *retention.Pruner
	checker   *health.Checker

	// episode receives the twin events of the running episode.
	episode twin.Observer
}

// newSession loads the scenario and builds the twin with its policy source,
// metrics and evidence pipeline.
func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (s *session, err error) {
	if cfg.Simulation.Scenario == "" {
		return nil, fmt.Errorf("no scenario configured (set simulation.scenario or --scenario)")
	}
	scenario, err := sim.LoadScenario(cfg.Simulation.Scenario)
	if err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	s = &session{cfg: cfg, logger: logger, scenario: scenario}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	twinCfg := cfg.Twin
	if scenario.Intersection != nil {
		twinCfg.Intersection = *scenario.Intersection
	}
	if s.twin, err = twin.New(&twinCfg, logger); err != nil {
		return nil, err
	}
	s.twin.AddObserver(twin.ObserverFunc(func(e twin.Event) {
		if s.episode != nil {
			s.episode.OnEvent(e)
		}
	}))

	if err := s.setupPolicy(ctx); err != nil {
		return nil, err
	}
	if cfg.Telemetry.Metrics.Enabled {
		s.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
		s.twin.AddObserver(s.collector.Observer())
	}
	if cfg.Evidence.Enabled {
		if err := s.setupEvidence(ctx); err != nil {
			return nil, err
		}
	}
	s.setupHealth()
	return s, nil
}

func (s *session) setupPolicy(ctx context.Context) error {
	pc := s.cfg.Policy

	var reused source.ReusedCodeProvider
	if pc.LibraryDir != "" {
		lib, err := library.Open(pc.LibraryDir, pc.LibraryResume, s.logger)
		if err != nil {
			return err
		}
		s.library = lib
		reused = lib
	}

	if pc.Path == "" {
		return nil
	}
	if !s.cfg.Twin.PolicyDriven {
		s.logger.Warn("policy path set but policy_driven is false, policy ignored", "path", pc.Path)
		return nil
	}

	path := pc.Path
	if pc.Git.Enabled {
		repo, err := s.cloneRepository(ctx)
		if err != nil {
			return err
		}
		path = repo.File(pc.Path)
	}

	s.source = source.NewFileSource(path, reused, s.logger).WithMaxFileSize(pc.MaxFileSize)
	mgrCfg := &manager.Config{DebounceInterval: pc.DebounceInterval, LoadTimeout: pc.LoadTimeout}
	if pc.Watch && !pc.Git.Enabled {
		mgrCfg.WatchPath = path
	}
	mgr, err := manager.New(s.source, mgrCfg, s.logger)
	if err != nil {
		return err
	}
	s.manager = mgr

	if s.repo != nil && pc.Watch {
		s.gitWatch = git.NewWatcher(s.repo, pc.Path, &git.WatcherConfig{
			PollInterval: pc.Git.PollInterval,
			Debounce:     pc.DebounceInterval,
		}, s.reloadFromRepository, s.logger)
	}
	return nil
}

func (s *session) cloneRepository(ctx context.Context) (*git.Repository, error) {
	gc, err := resolveGitConfig(ctx, &s.cfg.Policy.Git, s.logger)
	if err != nil {
		return nil, err
	}
	repo, err := git.NewRepository(gc)
	if err != nil {
		return nil, err
	}
	if err := repo.Clone(ctx); err != nil {
		return nil, err
	}
	commit, err := repo.CurrentCommit()
	if err != nil {
		return nil, err
	}
	s.logger.Info("policy repository ready",
		"repository", gc.Repository,
		"branch", gc.Branch,
		"commit", commit.Short(),
	)
	s.repo = repo
	return repo, nil
}

// resolveGitConfig returns a copy of gc with secret references in the
// credentials replaced by their values.
func resolveGitConfig(ctx context.Context, gc *config.GitConfig, logger *slog.Logger) (*config.GitConfig, error) {
	resolved := *gc
	providers := []secrets.Provider{secrets.NewEnvProvider(secrets.DefaultEnvPrefix)}
	if dir := gc.Auth.SecretsDir; dir != "" {
		files, err := secrets.NewFileProvider(dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, files)
	}
	r := secrets.NewResolver(logger, providers...)
	if err := r.ResolveAll(ctx, &resolved.Auth.Token, &resolved.Auth.SSHKeyPassphrase); err != nil {
		return nil, fmt.Errorf("policy repository credentials: %w", err)
	}
	return &resolved, nil
}

// reloadFromRepository hands the policy at the new commit to the manager if
// it compiles. A rejected commit is rolled back by the watcher.
func (s *session) reloadFromRepository(ctx context.Context) error {
	program, err := s.source.Load(ctx)
	if err != nil {
		return err
	}
	if err := engine.Compile(program); err != nil {
		return err
	}
	return s.manager.Load(ctx)
}

func (s *session) setupEvidence(ctx context.Context) error {
	ec := s.cfg.Evidence
	store, err := openStorage(ec, "")
	if err != nil {
		return err
	}
	s.store = store

	s.recorder = recorder.NewRecorder(store, &recorder.Config{
		Enabled:        true,
		AsyncBuffer:    ec.Recorder.AsyncBuffer,
		WriteTimeout:   ec.Recorder.WriteTimeout,
		RecordTicks:    ec.Recorder.RecordTicks,
		MaxFieldLength: ec.Recorder.MaxFieldLength,
	}, s.logger)

	if ec.Retention.PruneSchedule != "" {
		s.pruner = retention.NewPruner(store, &retention.Config{
			MaxAge:              ec.Retention.MaxAge,
			PruneSchedule:       ec.Retention.PruneSchedule,
			ArchiveBeforeDelete: ec.Retention.ArchiveBeforeDelete,
			ArchivePath:         ec.Retention.ArchivePath,
			MaxRecords:          ec.Retention.MaxRecords,
		}, s.logger)
		if err := s.pruner.Start(ctx); err != nil {
			s.logger.Warn("failed to start retention scheduler", "error", err)
			s.pruner = nil
		} else if next := s.pruner.NextPruning(); next != nil {
			s.logger.Debug("evidence retention scheduler started", "next_pruning", next)
		}
	}
	return nil
}

func (s *session) setupHealth() {
	s.checker = health.New(s.cfg.Telemetry.Health.CheckTimeout)
	if s.store != nil {
		s.checker.RegisterCheck("evidence_storage", health.StorageCheck(s.store))
	}
	if s.recorder != nil {
		s.checker.RegisterCheck("evidence_recorder", health.DropCheck(
			func() int64 { return s.recorder.Stats().Dropped },
			s.cfg.Telemetry.Health.MaxDroppedRecords,
		))
	}
	if s.manager != nil {
		s.checker.RegisterCheck("policy", func(context.Context) error {
			return s.manager.LastError()
		})
	}
	if s.gitWatch != nil {
		s.checker.RegisterCheck("policy_repository", func(context.Context) error {
			return s.gitWatch.LastError()
		})
	}
}

// runnerConfig returns the scenario's episode settings with the simulation
// overrides applied.
func (s *session) runnerConfig() sim.RunnerConfig {
	rc := s.scenario.RunnerConfig()
	if d := s.cfg.Simulation.Duration; d > 0 {
		rc.Duration = d
	}
	if f := s.cfg.Simulation.Frequency; f > 0 {
		rc.Frequency = f
	}
	return rc
}

// runEpisode runs one episode on a freshly built world. The policy file is
// re-read first since Reset drops the running program.
func (s *session) runEpisode(ctx context.Context) (*sim.Result, error) {
	world, err := s.scenario.Build()
	if err != nil {
		return nil, err
	}

	rc := s.runnerConfig()
	rc.EpisodeID = sim.NewEpisodeID()
	ctx = logging.WithEpisode(ctx, rc.EpisodeID, s.scenario.Name)

	var feed sim.ProgramFeed
	if s.manager != nil {
		if err := s.manager.Load(ctx); err != nil {
			s.logger.WarnContext(ctx, "policy not loaded, driving on autopilot", "error", err)
		}
		feed = s.manager
	}

	runner, err := sim.NewRunner(s.scenario.Name, world, s.twin, feed, rc, s.logger)
	if err != nil {
		return nil, err
	}

	episode := &evidence.Episode{
		EpisodeID: rc.EpisodeID,
		Scenario:  s.scenario.Name,
		StartedAt: time.Now().UTC(),
	}
	if s.recorder != nil {
		s.episode = s.recorder.Observer(rc.EpisodeID, s.scenario.Name)
		s.saveEpisode(ctx, episode)
		defer s.recorder.EndEpisode(rc.EpisodeID)
	}
	defer func() { s.episode = nil }()

	res, runErr := runner.Run(ctx)
	if res == nil {
		return nil, runErr
	}

	if s.collector != nil {
		s.collector.RecordEpisode(string(res.Termination), res.Ticks, res.Distance)
	}
	if s.recorder != nil {
		finished := time.Now().UTC()
		episode.FinishedAt = &finished
		episode.Termination = string(res.Termination)
		episode.Ticks = res.Ticks
		episode.PolicyTicks = res.PolicyTicks
		episode.AutopilotTicks = res.AutopilotTicks
		episode.Distance = res.Distance
		s.saveEpisode(ctx, episode)
	}

	s.logger.InfoContext(ctx, "episode summary",
		"termination", res.Termination,
		"ticks", res.Ticks,
		"policy_ticks", res.PolicyTicks,
		"reloads", res.Reloads,
		"reload_failures", res.ReloadFailures,
	)
	return res, runErr
}

func (s *session) saveEpisode(ctx context.Context, e *evidence.Episode) {
	// A cancelled run still gets its summary written.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Evidence.Recorder.WriteTimeout)
	defer cancel()
	if err := s.store.SaveEpisode(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to save episode", "error", err)
	}
}

// watch reloads the policy on change until ctx ends: by polling the
// repository in git mode, by watching the file otherwise.
func (s *session) watch(ctx context.Context) error {
	if s.manager == nil || !s.cfg.Policy.Watch {
		return nil
	}
	if s.gitWatch != nil {
		return s.gitWatch.Start(ctx)
	}
	go func() {
		if err := s.manager.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("policy watcher stopped", "error", err)
		}
	}()
	return nil
}

// Close releases the session's resources. The recorder is drained before
// the storage closes.
func (s *session) Close() error {
	var errs []error
	if s.gitWatch != nil {
		errs = append(errs, s.gitWatch.Stop())
	}
	if s.manager != nil {
		errs = append(errs, s.manager.Close())
	}
	if s.pruner != nil {
		s.pruner.Stop()
	}
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.twin != nil {
		errs = append(errs, s.twin.Close())
	}
	return errors.Join(errs...)
}
