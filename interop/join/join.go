// Package join drives parallel handles under golang.org/x/sync/errgroup.
// The handles stay ordinary awaitables; this package only supplies the
// composition glue, releasing whichever branches a combinator abandons.
package join

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/NetPo4ki/go-par/par"
)

// Two awaits both handles concurrently and returns both results. On failure
// the remaining branch is released.
func Two[A, B any](ctx context.Context, ha *par.Handle[A], hb *par.Handle[B]) (A, B, error) {
	var a A
	var b B
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = ha.Await(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = hb.Await(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		ha.Release()
		hb.Release()
		return a, b, err
	}
	return a, b, nil
}

// All awaits every handle concurrently, failing fast: on the first error the
// rest are released and the error is returned.
func All[T any](ctx context.Context, hs ...*par.Handle[T]) ([]T, error) {
	out := make([]T, len(hs))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hs {
		g.Go(func() error {
			v, err := h.Await(gctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, h := range hs {
			h.Release()
		}
		return nil, err
	}
	return out, nil
}

// First returns the outcome of whichever handle settles first, releasing all
// the others. Losing tasks are cancelled through their handles; their
// results are never observed.
func First[T any](ctx context.Context, hs ...*par.Handle[T]) (T, error) {
	var zero T
	if len(hs) == 0 {
		return zero, errors.New("join: no handles")
	}
	type settled struct {
		v   T
		err error
	}
	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan settled, len(hs))
	for _, h := range hs {
		go func() {
			v, err := h.Await(actx)
			ch <- settled{v: v, err: err}
		}()
	}
	defer func() {
		for _, h := range hs {
			h.Release()
		}
	}()
	r := <-ch
	return r.v, r.err
}
