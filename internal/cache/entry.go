package cache

import (
	"context"
	"fmt"
)

// Entry is the content of a cache slot: either a ready value or a handle to
// an in-flight load. Entries are immutable; replace them with Set.
type Entry[V any] struct {
	value  V
	handle *Handle[V]
}

// Ready wraps a materialized value
func Ready[V any](v V) *Entry[V] {
	return &Entry[V]{value: v}
}

// InProgress wraps a running load
func InProgress[V any](h *Handle[V]) *Entry[V] {
	return &Entry[V]{handle: h}
}

// Value returns the value of a ready entry
func (e *Entry[V]) Value() (V, bool) {
	if e.handle != nil {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Handle returns the handle of an in-progress entry
func (e *Entry[V]) Handle() (*Handle[V], bool) {
	return e.handle, e.handle != nil
}

// IsReady reports whether the entry holds a value
func (e *Entry[V]) IsReady() bool { return e.handle == nil }

// Resolve returns the value, awaiting the handle if the entry is in progress
func (e *Entry[V]) Resolve(ctx context.Context) (V, error) {
	if e.handle == nil {
		return e.value, nil
	}
	return e.handle.Wait(ctx)
}

// Handle is an awaitable, cancellable load running in its own goroutine.
// Any number of callers may Wait on the same handle.
type Handle[V any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  V
	err    error
}

// NewHandle starts fn in a new goroutine. The context passed to fn is
// derived from ctx and is cancelled by Cancel.
func NewHandle[V any](ctx context.Context, fn func(context.Context) (V, error)) *Handle[V] {
	return startHandle(ctx, fn, nil)
}

// startHandle runs finish after the result is recorded and before waiters
// are released, so a cache slot is settled by the time Wait returns.
func startHandle[V any](ctx context.Context, fn func(context.Context) (V, error), finish func(*Handle[V])) *Handle[V] {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle[V]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		h.value, h.err = run(runCtx, fn)
		if finish != nil {
			finish(h)
		}
		close(h.done)
	}()

	return h
}

func run[V any](ctx context.Context, fn func(context.Context) (V, error)) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until the load finishes or ctx is done. A done ctx only
// releases this caller; the load keeps running for everyone else.
func (h *Handle[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Cancel cancels the context of the running load
func (h *Handle[V]) Cancel() { h.cancel() }

// Done is closed once the load has finished and its result is visible
func (h *Handle[V]) Done() <-chan struct{} { return h.done }
