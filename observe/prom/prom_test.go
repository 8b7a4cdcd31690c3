package prom

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/NetPo4ki/go-par/par"
)

var _ par.Observer = (*Observer)(nil)

func TestObserverCounts(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	obs := New(reg)

	ok := par.Go(context.Background(), func(_ context.Context) (int, error) {
		return 1, nil
	}, par.WithObserver(obs))
	_, err := ok.Await(context.Background())
	require.NoError(t, err)

	bad := par.Go(context.Background(), func(_ context.Context) (int, error) {
		return 0, errors.New("boom")
	}, par.WithObserver(obs))
	_, err = bad.Await(context.Background())
	require.Error(t, err)

	dropped := par.Go(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, par.WithObserver(obs))
	dropped.Release()
	_, _ = dropped.Await(context.Background())

	// Released only after settling: the release is benign and must not
	// show up in the abandon counter, so spawned and finished stay in step.
	late := par.Go(context.Background(), func(_ context.Context) (int, error) {
		return 4, nil
	}, par.WithObserver(obs))
	<-late.Done()
	late.Release()

	require.Equal(t, 4.0, testutil.ToFloat64(obs.spawned))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.abandoned))
	require.Equal(t, 2.0, testutil.ToFloat64(obs.finished.WithLabelValues("ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(obs.finished.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(obs.active))
}

func TestObserverPanicOutcome(t *testing.T) {
	t.Parallel()
	obs := New(nil)
	h := par.Go(context.Background(), func(_ context.Context) (int, error) {
		panic("boom")
	}, par.WithObserver(obs))
	_, err := h.Await(context.Background())
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(obs.finished.WithLabelValues("panic")))
}
