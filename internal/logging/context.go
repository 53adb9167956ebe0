package logging

import (
	"context"
	"log/slog"

	"reelforge/internal/services"
)

// Structured keys shared by every component.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldProject   = "project"
)

// ContextFields returns the job, stage and project tags carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	for _, f := range []struct {
		key    string
		lookup func(context.Context) (string, bool)
	}{
		{FieldJobID, services.JobIDFromContext},
		{FieldStage, services.StageFromContext},
		{FieldProject, services.ProjectFromContext},
	} {
		if v, ok := f.lookup(ctx); ok {
			fields = append(fields, slog.String(f.key, v))
		}
	}
	return fields
}

// WithContext returns logger annotated with the tags carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
