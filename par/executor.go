package par

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Executor abstracts the "go func()" decision for spawned tasks. Execute
// must invoke fn exactly once, possibly after queueing; it must invoke fn
// even when the executor is shutting down, so the handle settles instead of
// hanging its awaiters.
type Executor interface {
	Execute(fn func())
}

// LifetimeExecutor is implemented by executors with a bounded lifetime.
// Tasks spawned on one are cancelled with ErrExecutorClosed when the
// lifetime context ends.
type LifetimeExecutor interface {
	Executor
	Context() context.Context
}

// goExec is the default executor: one fresh goroutine per task.
type goExec struct{}

func (goExec) Execute(fn func()) { go fn() }

// Bounded runs at most n tasks concurrently, queueing the rest on a
// weighted semaphore.
type Bounded struct {
	ctx context.Context
	sem *semaphore.Weighted
}

func NewBounded(ctx context.Context, n int64) *Bounded {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Bounded{ctx: ctx, sem: semaphore.NewWeighted(n)}
}

func (b *Bounded) Context() context.Context { return b.ctx }

func (b *Bounded) Execute(fn func()) {
	go func() {
		if err := b.sem.Acquire(b.ctx, 1); err != nil {
			// Executor closed while queued; the runner observes the closed
			// lifetime and settles without running the task.
			fn()
			return
		}
		defer b.sem.Release(1)
		fn()
	}()
}
