package otelobserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

func newRecorder() (*tracetest.SpanRecorder, *Observer) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return rec, New(tp)
}

func attr(kvs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range kvs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOnSuccess_RaceAndAttemptSpans(t *testing.T) {
	rec, obs := newRecorder()
	key := policy.ParseKey("downloads.binary")
	t0 := time.Unix(1700000000, 0)
	errDown := errors.New("down")

	obs.OnSuccess(context.Background(), key, observe.Timeline{
		Key:     key,
		RaceID:  "race-1",
		Sources: 2,
		Start:   t0,
		End:     t0.Add(300 * time.Millisecond),
		Winner:  1,
		Passes:  2,
		Attempts: []observe.AttemptRecord{
			{Source: 0, Attempt: 0, StartTime: t0, EndTime: t0.Add(100 * time.Millisecond), Err: errDown},
			{Source: 1, Attempt: 0, StartTime: t0, EndTime: t0.Add(250 * time.Millisecond)},
		},
		Settles: []observe.SettleRecord{{Source: 0, Time: t0.Add(100 * time.Millisecond), Err: errDown, Pass: 1}},
	})

	spans := rec.Ended()
	require.Len(t, spans, 3)

	var race sdktrace.ReadOnlySpan
	var attempts []sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "firstof.race" {
			race = s
		} else {
			attempts = append(attempts, s)
		}
	}
	require.NotNil(t, race)
	require.Len(t, attempts, 2)

	assert.Equal(t, t0, race.StartTime())
	assert.Equal(t, t0.Add(300*time.Millisecond), race.EndTime())
	assert.Equal(t, codes.Ok, race.Status().Code)

	v, ok := attr(race.Attributes(), "firstof.race_id")
	require.True(t, ok)
	assert.Equal(t, "race-1", v.AsString())
	v, ok = attr(race.Attributes(), "firstof.winner")
	require.True(t, ok)
	assert.EqualValues(t, 1, v.AsInt64())

	require.Len(t, race.Events(), 1)
	assert.Equal(t, "settled", race.Events()[0].Name)

	for _, a := range attempts {
		assert.Equal(t, race.SpanContext().SpanID(), a.Parent().SpanID())
	}
}

func TestOnFailure_ErrorStatus(t *testing.T) {
	rec, obs := newRecorder()
	key := policy.ParseKey("downloads.binary")

	obs.OnFailure(context.Background(), key, observe.Timeline{
		Key:      key,
		Winner:   -1,
		FinalErr: errors.New("every mirror failed"),
	})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "every mirror failed", spans[0].Status().Description)
}

func TestNew_NilProviderUsesGlobal(t *testing.T) {
	obs := New(nil)
	require.NotNil(t, obs.tracer)
	obs.OnSuccess(context.Background(), policy.PolicyKey{Name: "x"}, observe.Timeline{})
}
