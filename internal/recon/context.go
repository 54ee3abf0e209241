package recon

import "context"

type contextKey string

const (
	trialIDKey contextKey = "trial_id"
	stageKey   contextKey = "stage"
	cameraKey  contextKey = "camera"
)

// WithTrialID annotates context with the trial identifier.
func WithTrialID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, trialIDKey, id)
}

// TrialIDFromContext extracts the trial identifier if present.
func TrialIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(trialIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCamera annotates context with the camera name being processed.
func WithCamera(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, cameraKey, name)
}

// CameraFromContext returns the camera name if present.
func CameraFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cameraKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
