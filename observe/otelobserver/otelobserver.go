// Package otelobserver exports finished races as OpenTelemetry spans.
//
// A race becomes one span named "firstof.race" covering the timeline, with a
// child span per attempt. Spans are emitted when the race resolves, using the
// recorded timestamps.
package otelobserver

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

const instrumentationName = "github.com/aponysus/firstof/observe/otelobserver"

type Observer struct {
	observe.BaseObserver
	tracer trace.Tracer
}

var _ observe.Observer = (*Observer)(nil)

// New returns an Observer using tp, or the global TracerProvider when tp is nil.
func New(tp trace.TracerProvider) *Observer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Observer{tracer: tp.Tracer(instrumentationName)}
}

func (o *Observer) OnSuccess(ctx context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.export(ctx, key, tl)
}

func (o *Observer) OnFailure(ctx context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.export(ctx, key, tl)
}

func (o *Observer) export(ctx context.Context, key policy.PolicyKey, tl observe.Timeline) {
	start, end := tl.Start, tl.End
	if start.IsZero() {
		start = time.Now()
	}
	if end.IsZero() {
		end = start
	}

	attrs := []attribute.KeyValue{
		attribute.String("firstof.key", key.String()),
		attribute.String("firstof.race_id", tl.RaceID),
		attribute.Int("firstof.sources", tl.Sources),
		attribute.Int("firstof.winner", tl.Winner),
		attribute.Int("firstof.passes", tl.Passes),
		attribute.Int("firstof.attempts", len(tl.Attempts)),
	}
	if tl.PolicyID != "" {
		attrs = append(attrs, attribute.String("firstof.policy_id", tl.PolicyID))
	}
	for k, v := range tl.Attributes {
		attrs = append(attrs, attribute.String("firstof."+k, v))
	}

	ctx, span := o.tracer.Start(ctx, "firstof.race",
		trace.WithTimestamp(start),
		trace.WithAttributes(attrs...),
	)

	for _, s := range tl.Settles {
		evAttrs := []attribute.KeyValue{
			attribute.Int("firstof.source", s.Source),
			attribute.Int("firstof.pass", s.Pass),
		}
		if s.Err != nil {
			evAttrs = append(evAttrs, attribute.String("error", s.Err.Error()))
		}
		span.AddEvent("settled", trace.WithTimestamp(s.Time), trace.WithAttributes(evAttrs...))
	}

	for _, a := range tl.Attempts {
		_, child := o.tracer.Start(ctx, "firstof.attempt",
			trace.WithTimestamp(a.StartTime),
			trace.WithAttributes(
				attribute.Int("firstof.source", a.Source),
				attribute.Int("firstof.attempt", a.Attempt),
				attribute.Bool("firstof.panicked", a.Panicked),
				attribute.Int64("firstof.backoff_ms", a.Backoff.Milliseconds()),
			),
		)
		if a.Err != nil {
			child.RecordError(a.Err, trace.WithTimestamp(a.EndTime))
			child.SetStatus(codes.Error, a.Err.Error())
		}
		child.End(trace.WithTimestamp(a.EndTime))
	}

	if tl.FinalErr != nil {
		span.RecordError(tl.FinalErr, trace.WithTimestamp(end))
		span.SetStatus(codes.Error, tl.FinalErr.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}
