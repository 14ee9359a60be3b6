package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogFormat names an output encoding.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
	// FormatConsole is text without timestamps, for interactive runs.
	FormatConsole LogFormat = "console"
)

// Config contains configuration for the logger.
type Config struct {
	// Level is "debug", "info", "warn" or "error". Empty means info.
	Level string

	// Format is "json", "text" or "console". Empty means json.
	Format string

	AddSource bool

	// MaxValueLength truncates long string values such as policy say text
	// and Lua tracebacks. 0 disables truncation.
	MaxValueLength int

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

type handlerFunc func(io.Writer, *slog.HandlerOptions) slog.Handler

var handlers = map[LogFormat]handlerFunc{
	FormatJSON:    func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	FormatText:    func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
	FormatConsole: func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
}

// New builds a logger from cfg. Records logged with a context carrying
// episode fields (see WithEpisode) get those fields appended.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format := LogFormat(strings.ToLower(cfg.Format))
	if format == "" {
		format = FormatJSON
	}
	newHandler, ok := handlers[format]
	if !ok {
		return nil, fmt.Errorf("invalid log format: unknown log format: %s", cfg.Format)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	sanitize := sanitizer(cfg.MaxValueLength)
	dropTime := format == FormatConsole

	h := newHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if dropTime && len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return sanitize(groups, a)
		},
	})
	return slog.New(episodeHandler{h}), nil
}

// Setup is New followed by slog.SetDefault.
func Setup(cfg Config) (*slog.Logger, error) {
	logger, err := New(cfg)
	if err == nil {
		slog.SetDefault(logger)
	}
	return logger, err
}

// ParseLevel accepts the slog level names in any case, plus "warning" and
// the empty string for info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	case "debug", "info", "warn", "error":
		err := level.UnmarshalText([]byte(s))
		return level, err
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

type episodeHandler struct {
	slog.Handler
}

func (h episodeHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := extractContextFields(ctx); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h episodeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return episodeHandler{h.Handler.WithAttrs(attrs)}
}

func (h episodeHandler) WithGroup(name string) slog.Handler {
	return episodeHandler{h.Handler.WithGroup(name)}
}
