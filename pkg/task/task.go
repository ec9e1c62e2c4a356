package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State describes how a bounded task settled
type State int

const (
	Done State = iota
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Done:
		return "done"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ErrTimeout is set on an Outcome whose task did not finish in time
var ErrTimeout = errors.New("task timed out")

// Outcome is the result-or-timeout of a bounded task.
// Value is only meaningful when State is Done.
type Outcome[T any] struct {
	Value   T
	Err     error
	State   State
	Elapsed time.Duration
}

// OK reports whether the task finished without error
func (o Outcome[T]) OK() bool {
	return o.State == Done
}

// Run executes fn with its own deadline. The parent context is honoured, but a
// timeout never propagates as a panic or a shared cancellation: the caller gets
// an Outcome and decides what an empty result means.
//
// A non-positive timeout runs fn bounded only by ctx.
func Run[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) Outcome[T] {
	start := time.Now()

	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{value: zero, err: fmt.Errorf("task panic: %v", r)}
			}
		}()
		v, err := fn(runCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		out := Outcome[T]{Value: r.value, Err: r.err, Elapsed: time.Since(start)}
		switch {
		case r.err == nil:
			out.State = Done
		case errors.Is(r.err, context.DeadlineExceeded) && runCtx.Err() != nil:
			out.State = TimedOut
		default:
			out.State = Failed
		}
		return out
	case <-runCtx.Done():
		var zero T
		out := Outcome[T]{Value: zero, Elapsed: time.Since(start)}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			out.State = TimedOut
			out.Err = ErrTimeout
		} else {
			out.State = Failed
			out.Err = runCtx.Err()
		}
		return out
	}
}
