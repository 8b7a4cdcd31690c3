package scope

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/NetPo4ki/go-par/par"
)

type Policy int

const (
	FailFast Policy = iota
	Supervisor
)

type Option func(*Options)

type Options struct {
	PanicAsError   bool
	Observer       par.Observer
	MaxConcurrency int
}

func defaultOptions() Options { return Options{PanicAsError: true} }

func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

func WithObserver(obs par.Observer) Option { return func(o *Options) { o.Observer = obs } }

func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// handle is the scope's type-erased view of a par.Handle.
type handle interface {
	Done() <-chan struct{}
	Release()
}

// Scope owns every handle spawned in it. Wait joins them all and releases
// any the caller never consumed, so no task outlives the scope.
type Scope struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	policy   Policy
	exec     par.Executor
	mu       sync.Mutex
	firstErr error
	handles  []handle

	opts Options
}

func New(parent context.Context, policy Policy, optFns ...Option) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	s := &Scope{ctx: ctx, cancel: cancel, policy: policy, opts: defaultOptions()}
	for _, fn := range optFns {
		fn(&s.opts)
	}
	if s.opts.MaxConcurrency > 0 {
		s.exec = par.NewBounded(ctx, int64(s.opts.MaxConcurrency))
	}
	return s
}

func (s *Scope) Context() context.Context { return s.ctx }

// Go spawns task bound to s. The returned handle may be awaited before
// s.Wait; handles never consumed are released when the scope joins.
func Go[T any](s *Scope, task par.Task[T]) *par.Handle[T] {
	opts := []par.Option{par.WithPanicAsError(s.opts.PanicAsError)}
	if s.opts.Observer != nil {
		opts = append(opts, par.WithObserver(s.opts.Observer))
	}
	if s.exec != nil {
		opts = append(opts, par.WithExecutor(s.exec))
	}
	h := par.Go(s.ctx, func(ctx context.Context) (v T, err error) {
		// Recover here rather than in the runner so the policy reacts to a
		// panic as soon as it happens, not when the scope joins.
		defer func() {
			if r := recover(); r != nil {
				if !s.opts.PanicAsError {
					panic(r)
				}
				err = fmt.Errorf("panic: %v", r)
				s.fail(err)
			}
		}()
		v, err = task(ctx)
		// Abandonment is a silent outcome; only genuine failures feed the
		// scope's policy.
		if err != nil && !errors.Is(context.Cause(ctx), par.ErrAbandoned) {
			s.fail(err)
		}
		return v, err
	}, opts...)
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h
}

// Run spawns a result-less task. Its error still feeds the scope's policy.
func (s *Scope) Run(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	Go(s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

func (s *Scope) Cancel(cause error) {
	s.mu.Lock()
	if s.firstErr == nil && cause != nil {
		s.firstErr = cause
	}
	cause = s.firstErr
	s.mu.Unlock()
	s.cancel(cause)
}

// Wait blocks until every handle spawned in the scope has settled, then
// releases the ones nobody consumed. It returns the first recorded error.
func (s *Scope) Wait() error {
	idx := 0
	for {
		s.mu.Lock()
		pending := s.handles[idx:]
		idx = len(s.handles)
		s.mu.Unlock()
		if len(pending) == 0 {
			break
		}
		for _, h := range pending {
			<-h.Done()
		}
	}
	s.mu.Lock()
	hs := s.handles
	s.mu.Unlock()
	for _, h := range hs {
		h.Release()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *Scope) fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	shouldCancel := s.policy == FailFast
	cause := s.firstErr
	s.mu.Unlock()
	if shouldCancel {
		s.cancel(cause)
	}
}

func (s *Scope) Child(policy Policy, optFns ...Option) *Scope {
	childOpts := s.opts
	for _, fn := range optFns {
		fn(&childOpts)
	}
	ctx, cancel := context.WithCancelCause(s.ctx)
	cs := &Scope{ctx: ctx, cancel: cancel, policy: policy, opts: childOpts}
	if childOpts.MaxConcurrency > 0 {
		cs.exec = par.NewBounded(ctx, int64(childOpts.MaxConcurrency))
	}
	return cs
}
