// Package suspend implements the coroutine-style blocking RPC pattern
// from spec.md §4.6 / §9: a single RPC handler invocation obtains a
// Resumer, blocks on it, and some later, unrelated event (a UI hook, a
// replacement, a shutdown) resolves it exactly once.
//
// This is modeled the way the teacher's pkg/agent.EventStream models
// "wait for the final result of an async operation": a buffered,
// capacity-1 channel that the producer writes to at most once and the
// consumer blocks reading from.
package suspend

import (
	"context"
	"errors"
	"sync"
)

// ErrNotSuspendable is returned by Await when called outside a
// suspendable execution context (spec.md §4.6, the InternalError
// "must run suspendable" case).
var ErrNotSuspendable = errors.New("suspend: handler invoked outside a suspendable context")

type suspendableKey struct{}

// WithSuspendable marks ctx as running on an execution context that is
// allowed to block awaiting a Resumer. The transport layer sets this
// before invoking a handler that may call Await.
func WithSuspendable(ctx context.Context) context.Context {
	return context.WithValue(ctx, suspendableKey{}, true)
}

// IsSuspendable reports whether ctx was marked with WithSuspendable.
func IsSuspendable(ctx context.Context) bool {
	v, _ := ctx.Value(suspendableKey{}).(bool)
	return v
}

// Resumer is a one-shot handle that completes a suspended call with a
// result. Invoking it more than once is a no-op (spec.md §4.6: "The
// resumer may be invoked exactly once. Subsequent invocations are
// no-ops").
type Resumer[R any] struct {
	once sync.Once
	ch   chan R
}

// NewResumer creates a Resumer that has not yet been resumed.
func NewResumer[R any]() *Resumer[R] {
	return &Resumer[R]{ch: make(chan R, 1)}
}

// Resume completes the suspended call with result. Only the first call
// has any effect; it reports whether this call was the one that fired.
func (r *Resumer[R]) Resume(result R) bool {
	fired := false
	r.once.Do(func() {
		r.ch <- result
		fired = true
	})
	return fired
}

// Await blocks until Resume is called (or result is already pending
// from an earlier Resume call, if Await is invoked after the fact) and
// returns its value. The caller must be running on a suspendable
// execution context, or Await fails immediately with ErrNotSuspendable;
// this mirrors the real system's requirement that the RPC dispatcher
// hand the handler a coroutine it is prepared to park.
func (r *Resumer[R]) Await(ctx context.Context) (R, error) {
	var zero R
	if !IsSuspendable(ctx) {
		return zero, ErrNotSuspendable
	}
	select {
	case v := <-r.ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
