package logging

import (
	"context"
	"log/slog"

	"mocap/internal/recon"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldTrialID is the structured logging key for trial identifiers.
	FieldTrialID = "trial_id"
	// FieldStage is the structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldCamera is the structured logging key for camera names.
	FieldCamera = "camera"
)

// ContextFields extracts standardized slog attributes from the provided
// context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := recon.TrialIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTrialID, id))
	}
	if stage, ok := recon.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if cam, ok := recon.CameraFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCamera, cam))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}

// WithComponent tags a logger with a component name.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}
