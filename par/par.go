package par

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// Task is the unit of work handed to an executor. It must honor ctx:
// when ctx is done the task should stop and return, typically with
// ctx.Err() or the value of context.Cause(ctx).
type Task[T any] func(ctx context.Context) (T, error)

// ErrAbandoned is the cancellation cause delivered to a task whose handle
// was released (or collected) before the result was consumed.
var ErrAbandoned = errors.New("par: handle abandoned")

// ErrExecutorClosed is the cancellation cause delivered to a task whose
// executor shut down before or while the task ran.
var ErrExecutorClosed = errors.New("par: executor closed")

// errSettled marks the task context as done once the runner has stored the
// result, so context resources are released on the normal path too.
var errSettled = errors.New("par: task settled")

type Option func(*Options)

type Options struct {
	PanicAsError bool
	Observer     Observer
	Executor     Executor
}

func defaultOptions() Options { return Options{PanicAsError: true, Executor: goExec{}} }

func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

func WithExecutor(e Executor) Option { return func(o *Options) { o.Executor = e } }

// Observer receives handle lifecycle events. Implementations must be safe
// for concurrent use.
type Observer interface {
	TaskSpawned(ctx context.Context)
	TaskFinished(ctx context.Context, dur time.Duration, err error, panicked bool)
	TaskAbandoned(ctx context.Context)
}

// Handle is the owner of one spawned task. It is created by Go, which hands
// the task to an executor before returning, and it resolves through Await or
// Done once the task settles.
//
// A handle that is released, or that becomes unreachable without ever being
// awaited, cancels its task with ErrAbandoned. Cancellation is advisory: the
// task may already be finished, in which case the request is a no-op, and a
// running task stops only when it observes its context.
//
// Handles must not be copied.
type Handle[T any] struct {
	j *join[T]
}

// join carries everything the runner and the cleanup need, so neither keeps
// the Handle itself reachable.
type join[T any] struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	lifetime context.Context
	done     chan struct{}
	taken    atomic.Bool
	obs      Observer

	result T
	err    error
}

// Go converts task into a Handle, submitting it to the executor before
// returning. Submission is eager: the executor owns the work from this point
// on, whether or not the handle is ever awaited.
func Go[T any](ctx context.Context, task Task[T], optFns ...Option) *Handle[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	tctx, cancel := context.WithCancelCause(ctx)
	j := &join[T]{ctx: tctx, cancel: cancel, done: make(chan struct{}), obs: o.Observer}

	var stop func() bool
	if le, ok := o.Executor.(LifetimeExecutor); ok {
		j.lifetime = le.Context()
		stop = context.AfterFunc(j.lifetime, func() { cancel(ErrExecutorClosed) })
	}
	if j.obs != nil {
		j.obs.TaskSpawned(tctx)
	}
	h := &Handle[T]{j: j}
	o.Executor.Execute(func() { j.run(task, o.PanicAsError, stop) })
	runtime.AddCleanup(h, (*join[T]).abandon, j)
	return h
}

// Done returns a channel closed when the task has settled. Callers selecting
// on it must keep the handle itself reachable (see Await), or the cleanup may
// cancel the task mid-wait.
func (h *Handle[T]) Done() <-chan struct{} { return h.j.done }

// Await blocks until the task settles or ctx is done. On settlement it
// drains the ownership slot and returns the task's own result or failure.
// If the slot was already drained, whether by Release, the cleanup, or an
// earlier Await, the result is gone for good and Await reports ErrAbandoned.
// If ctx is done first, Await returns its cause without consuming the
// handle; the task keeps running and the handle stays live for a later
// Await or Release.
func (h *Handle[T]) Await(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-h.j.done:
		if !h.j.take() {
			var zero T
			runtime.KeepAlive(h)
			return zero, ErrAbandoned
		}
		runtime.KeepAlive(h)
		return h.j.result, h.j.err
	case <-ctx.Done():
		var zero T
		runtime.KeepAlive(h)
		return zero, context.Cause(ctx)
	}
}

// Release abandons the handle. If the result has not been consumed it takes
// ownership and cancels the task with ErrAbandoned; after consumption, or on
// repeat calls, it is a no-op. Release never reports an outcome: an
// abandoning caller has already discarded interest in the result.
func (h *Handle[T]) Release() {
	h.j.abandon()
	runtime.KeepAlive(h)
}

func (j *join[T]) abandon() {
	if !j.take() {
		return
	}
	j.cancel(ErrAbandoned)
	if j.obs == nil {
		return
	}
	// A release that lost the race with normal completion cancelled nothing;
	// that benign outcome is never reported.
	select {
	case <-j.done:
	default:
		j.obs.TaskAbandoned(j.ctx)
	}
}

// take drains the ownership slot. The atomic swap is the only arbiter
// between the await path and the release path.
func (j *join[T]) take() bool { return !j.taken.Swap(true) }

func (j *join[T]) run(task Task[T], panicAsError bool, stop func() bool) {
	defer close(j.done)
	if stop != nil {
		defer stop()
	}
	defer j.cancel(errSettled)

	// The handle may have been released, or the executor closed, before a
	// worker picked this up. Settle without ever entering the task.
	if j.lifetime != nil && j.lifetime.Err() != nil {
		j.cancel(ErrExecutorClosed)
	}
	if j.ctx.Err() != nil {
		j.err = context.Cause(j.ctx)
		if j.obs != nil {
			j.obs.TaskFinished(j.ctx, 0, j.err, false)
		}
		return
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if panicAsError {
				j.err = fmt.Errorf("panic: %v", r)
				if j.obs != nil {
					j.obs.TaskFinished(j.ctx, time.Since(start), j.err, true)
				}
			} else {
				if j.obs != nil {
					j.obs.TaskFinished(j.ctx, time.Since(start), nil, true)
				}
				panic(r)
			}
		}
	}()
	j.result, j.err = task(j.ctx)
	if j.obs != nil {
		j.obs.TaskFinished(j.ctx, time.Since(start), j.err, false)
	}
}
