package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// EpisodeIDKey is the context key for episode identifiers.
	EpisodeIDKey contextKey = "episode_id"

	// ScenarioKey is the context key for scenario names.
	ScenarioKey contextKey = "scenario"

	// ProgramKey is the context key for policy program names.
	ProgramKey contextKey = "program"
)

// WithEpisode adds the episode identifier and scenario name to the context.
func WithEpisode(ctx context.Context, episodeID, scenario string) context.Context {
	ctx = context.WithValue(ctx, EpisodeIDKey, episodeID)
	return context.WithValue(ctx, ScenarioKey, scenario)
}

// GetEpisodeID retrieves the episode identifier from the context.
func GetEpisodeID(ctx context.Context) string {
	if id, ok := ctx.Value(EpisodeIDKey).(string); ok {
		return id
	}
	return ""
}

// GetScenario retrieves the scenario name from the context.
func GetScenario(ctx context.Context) string {
	if name, ok := ctx.Value(ScenarioKey).(string); ok {
		return name
	}
	return ""
}

// WithProgram adds a policy program name to the context.
func WithProgram(ctx context.Context, program string) context.Context {
	return context.WithValue(ctx, ProgramKey, program)
}

// GetProgram retrieves the policy program name from the context.
func GetProgram(ctx context.Context) string {
	if program, ok := ctx.Value(ProgramKey).(string); ok {
		return program
	}
	return ""
}

func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id := GetEpisodeID(ctx); id != "" {
		fields = append(fields, slog.String(string(EpisodeIDKey), id))
	}
	if name := GetScenario(ctx); name != "" {
		fields = append(fields, slog.String(string(ScenarioKey), name))
	}
	if program := GetProgram(ctx); program != "" {
		fields = append(fields, slog.String(string(ProgramKey), program))
	}
	return fields
}
