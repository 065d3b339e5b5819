// Package promobserver exports race metrics to Prometheus.
package promobserver

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

const namespace = "firstof"

// Observer implements observe.Observer by updating Prometheus collectors.
type Observer struct {
	observe.BaseObserver

	races    *prometheus.CounterVec
	attempts *prometheus.CounterVec
	settles  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	passes   *prometheus.HistogramVec
}

var _ observe.Observer = (*Observer)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		races: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "race",
				Name:      "total",
				Help:      "Races finished, by result (won/lost).",
			},
			[]string{"key", "result"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "attempts_total",
				Help:      "Source invocations, by result (ok/error).",
			},
			[]string{"key", "result"},
		),
		settles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "settled_total",
				Help:      "Sources observed as settled by the combinator, by result (ok/error).",
			},
			[]string{"key", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "race",
				Name:      "duration_seconds",
				Help:      "Wall time from race start to outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"key", "result"},
		),
		passes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "race",
				Name:      "passes",
				Help:      "Combinator activations needed to reach an outcome.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"key"},
		),
	}

	for _, c := range []prometheus.Collector{o.races, o.attempts, o.settles, o.duration, o.passes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) OnAttempt(_ context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	o.attempts.WithLabelValues(key.String(), result(rec.Err)).Inc()
}

func (o *Observer) OnSettle(_ context.Context, key policy.PolicyKey, rec observe.SettleRecord) {
	o.settles.WithLabelValues(key.String(), result(rec.Err)).Inc()
}

func (o *Observer) OnSuccess(_ context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.finish(key, tl, "won")
}

func (o *Observer) OnFailure(_ context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.finish(key, tl, "lost")
}

func (o *Observer) finish(key policy.PolicyKey, tl observe.Timeline, res string) {
	k := key.String()
	o.races.WithLabelValues(k, res).Inc()
	if !tl.Start.IsZero() && !tl.End.IsZero() {
		o.duration.WithLabelValues(k, res).Observe(tl.End.Sub(tl.Start).Seconds())
	}
	o.passes.WithLabelValues(k).Observe(float64(tl.Passes))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
