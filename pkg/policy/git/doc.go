// Package git loads policy files from a Git repository.
//
// A Repository clones the remote once and pulls on demand. A Watcher polls
// the remote, reloads when a commit touches the policy file and resets the
// clone to the last good commit when the new policy is rejected.
//
// # Basic Usage
//
//	repo, err := git.NewRepository(&cfg.Policy.Git)
//	if err != nil {
//		return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//		return err
//	}
//	src := source.NewFileSource(repo.File("highway/overtake.lua"), lib, logger)
//
// # Change Detection
//
//	w := git.NewWatcher(repo, "highway/overtake.lua", &git.WatcherConfig{
//		PollInterval: 30 * time.Second,
//	}, reload, logger)
//	if err := w.Start(ctx); err != nil {
//		return err
//	}
//	defer w.Stop()
//
// # Authentication
//
// Token auth uses HTTPS basic auth with the token as password. SSH auth
// reads a private key that must not be readable by group or others. Public
// repositories and local paths need no auth.
package git
