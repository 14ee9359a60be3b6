// Package manager keeps the running policy in step with its source.
//
// The Manager loads a program from an engine.Source and, when watching,
// reloads it whenever the policy file changes on disk. Reloads happen on the
// watcher goroutine; the result is parked as a pending program that the tick
// loop collects with Pending between ticks. The twin is therefore never
// touched from a background goroutine.
//
// # Hot Reload
//
// File changes are detected with fsnotify. Editors often save by writing a
// temporary file and renaming it over the original, so the watcher observes
// the parent directory and filters events by file name. Bursts
// of events are collapsed by a Debouncer:
//
//	mgr, err := manager.New(src, cfg, logger)
//	if err := mgr.Load(ctx); err != nil { ... }
//	go mgr.Watch(ctx)
//
//	for tick := range ticks {
//	    if program, ok := mgr.Pending(); ok {
//	        twin.LoadProgram(ctx, program)
//	    }
//	    twin.Act(ctx)
//	}
//
// A reload that fails keeps the last good program active; the error is
// logged and reported by LastError.
package manager
