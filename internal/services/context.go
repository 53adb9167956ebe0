package services

import "context"

type contextKey int

const (
	jobIDKey contextKey = iota
	stageKey
	projectKey
)

// WithJobID tags ctx with the render job being worked on.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey, id)
}

// JobIDFromContext returns the render job id, if any.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return value(ctx, jobIDKey)
}

// WithStage tags ctx with the current render stage (probe, render, archive).
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return value(ctx, stageKey)
}

// WithProject tags ctx with the project file being rendered.
func WithProject(ctx context.Context, path string) context.Context {
	return withValue(ctx, projectKey, path)
}

func ProjectFromContext(ctx context.Context) (string, bool) {
	return value(ctx, projectKey)
}

// Blank values leave ctx untouched so an outer tag is never cleared.
func withValue(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func value(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
