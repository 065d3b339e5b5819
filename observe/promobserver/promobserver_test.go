package promobserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

func TestObserver_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	key := policy.ParseKey("downloads.binary")
	start := time.Unix(0, 0)

	obs.OnAttempt(ctx, key, observe.AttemptRecord{Err: errors.New("x")})
	obs.OnAttempt(ctx, key, observe.AttemptRecord{Err: errors.New("y")})
	obs.OnAttempt(ctx, key, observe.AttemptRecord{})
	obs.OnSettle(ctx, key, observe.SettleRecord{})
	obs.OnSuccess(ctx, key, observe.Timeline{Start: start, End: start.Add(time.Second), Passes: 3})
	obs.OnFailure(ctx, key, observe.Timeline{Passes: 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(obs.attempts.WithLabelValues("downloads.binary", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.attempts.WithLabelValues("downloads.binary", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.settles.WithLabelValues("downloads.binary", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.races.WithLabelValues("downloads.binary", "won")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.races.WithLabelValues("downloads.binary", "lost")))

	// Only the won race carried timestamps.
	assert.Equal(t, 1, testutil.CollectAndCount(obs.duration))
	assert.Equal(t, 1, testutil.CollectAndCount(obs.passes))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	require.Error(t, err)
}
