// Package logging configures log/slog for drivetwin.
//
// New builds a JSON, text or console handler and wraps it so records logged
// with a context carry the episode fields stored by WithEpisode and
// WithProgram:
//
//	logger, err := logging.Setup(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithEpisode(ctx, runner.EpisodeID(), scenario.Name)
//	logger.InfoContext(ctx, "episode started")
//	// {"level":"INFO","msg":"episode started","episode_id":"…","scenario":"highway"}
//
// String values are stripped of control characters and optionally
// truncated, since policies can put arbitrary text into say events and
// error messages.
package logging
