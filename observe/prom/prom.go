// Package prom exports handle lifecycle metrics to Prometheus. It implements
// the par.Observer interface on client_golang collectors.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer counts spawned, finished and abandoned tasks and tracks task
// duration. Register it once and share it across spawns.
type Observer struct {
	spawned   prometheus.Counter
	abandoned prometheus.Counter
	finished  *prometheus.CounterVec
	active    prometheus.Gauge
	duration  prometheus.Histogram
}

// New builds an Observer and registers its collectors with reg. A nil reg
// skips registration, which is useful for tests that only read the values.
func New(reg prometheus.Registerer) *Observer {
	o := &Observer{
		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "par",
			Name:      "tasks_spawned_total",
			Help:      "Tasks handed to an executor.",
		}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "par",
			Name:      "tasks_abandoned_total",
			Help:      "Handles released or collected before consumption.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "par",
			Name:      "tasks_finished_total",
			Help:      "Settled tasks by outcome.",
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "par",
			Name:      "tasks_active",
			Help:      "Tasks spawned and not yet settled.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "par",
			Name:      "task_duration_seconds",
			Help:      "Wall time between a task starting and settling.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(o.spawned, o.abandoned, o.finished, o.active, o.duration)
	}
	return o
}

// TaskSpawned records a task handed to an executor.
func (o *Observer) TaskSpawned(_ context.Context) {
	o.spawned.Inc()
	o.active.Inc()
}

// TaskFinished records a settled task and its outcome.
func (o *Observer) TaskFinished(_ context.Context, dur time.Duration, err error, panicked bool) {
	o.active.Dec()
	switch {
	case panicked:
		o.finished.WithLabelValues("panic").Inc()
	case err != nil:
		o.finished.WithLabelValues("error").Inc()
	default:
		o.finished.WithLabelValues("ok").Inc()
	}
	o.duration.Observe(dur.Seconds())
}

// TaskAbandoned records a handle released before its result was consumed.
func (o *Observer) TaskAbandoned(_ context.Context) {
	o.abandoned.Inc()
}
