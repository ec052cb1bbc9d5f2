package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID   contextKey = "trace_id"
	keyRunID     contextKey = "run_id"
	keyTaskID    contextKey = "task_id"
	keyAgentName contextKey = "agent_name"
	keySubject   contextKey = "subject"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithRunID adds the crew run ID to context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, keyRunID, runID)
}

// RunID extracts the crew run ID from context.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRunID).(string)
	return v, ok && v != ""
}

// WithTaskID adds task ID to context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, keyTaskID, taskID)
}

// TaskID extracts task ID from context.
func TaskID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTaskID).(string)
	return v, ok && v != ""
}

// WithAgentName adds the executing agent's name to context.
func WithAgentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyAgentName, name)
}

// AgentName extracts the executing agent's name from context.
func AgentName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyAgentName).(string)
	return v, ok && v != ""
}

// WithSubject adds the authenticated API subject to context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, keySubject, subject)
}

// Subject extracts the authenticated API subject from context.
func Subject(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keySubject).(string)
	return v, ok && v != ""
}
