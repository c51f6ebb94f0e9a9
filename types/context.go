package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRunID  contextKey = "run_id"
	keyTaskID contextKey = "task_id"
	keyDryRun contextKey = "dry_run"
)

// WithRunID adds run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithTaskID adds the id of the task currently in flight to context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, keyTaskID, taskID)
}

// TaskID extracts task ID from context.
func TaskID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTaskID).(string)
	return v, ok && v != ""
}

// WithDryRun marks the context as belonging to a dry run.
func WithDryRun(ctx context.Context, dryRun bool) context.Context {
	return context.WithValue(ctx, keyDryRun, dryRun)
}

// DryRun reports whether the context belongs to a dry run.
func DryRun(ctx context.Context) bool {
	v, _ := ctx.Value(keyDryRun).(bool)
	return v
}
