package ports

import "context"

// Executor performs the actual banking side effect for a completed intent.
// It is injected per intent by the business-logic layer; the core never
// decides what an action does.
//
// Outcomes are an explicit value/error pair. The coordinator converts any
// error (or panic) into a FAILURE audit record at its boundary; executors
// should not expect errors to propagate raw to the caller.
type Executor interface {
	Execute(ctx context.Context, intent string, slots map[string]any, userID string) (any, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, intent string, slots map[string]any, userID string) (any, error)

// Execute calls the wrapped function.
func (f ExecutorFunc) Execute(ctx context.Context, intent string, slots map[string]any, userID string) (any, error) {
	return f(ctx, intent, slots, userID)
}
