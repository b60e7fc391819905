// Package attemptctx attaches an index attempt id to a context so log lines
// emitted while dispatching or observing that attempt are automatically
// correlated, the same way the teacher's internal/requestid threads an
// HTTP request id through context for its ContextHandler.
package attemptctx

import "context"

type ctxKey struct{}

// With returns a copy of ctx carrying attemptID.
func With(ctx context.Context, attemptID int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, attemptID)
}

// From extracts the attempt id from ctx. ok is false if absent.
func From(ctx context.Context) (id int64, ok bool) {
	id, ok = ctx.Value(ctxKey{}).(int64)
	return id, ok
}
