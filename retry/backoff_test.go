package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aponysus/firstof/policy"
)

func TestDo_NoBackoffByDefault(t *testing.T) {
	sleeps := &recordedSleeps{}
	calls := 0
	_, _ = Do(context.Background(), NewRetryer(3, withSleep(sleeps.sleep)), failUntil(-1, &calls))

	assert.Equal(t, 4, calls)
	assert.Empty(t, sleeps.sleeps)
}

func TestFromPolicy_ExponentialBackoffCapped(t *testing.T) {
	pol := policy.New("downloads.binary",
		policy.ExtraAttempts(4),
		policy.InitialBackoff(10*time.Millisecond),
		policy.MaxBackoff(25*time.Millisecond),
		policy.BackoffMultiplier(2),
		policy.Jitter(policy.JitterNone),
	)

	sleeps := &recordedSleeps{}
	rec := &attemptRecorder{}
	calls := 0
	_, _ = Do(context.Background(), FromPolicy(pol.Retry, withSleep(sleeps.sleep), WithObserver(rec)), failUntil(-1, &calls))

	assert.Equal(t, 5, calls)
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		25 * time.Millisecond,
		25 * time.Millisecond,
	}, sleeps.sleeps)

	records := rec.snapshot()
	require.Len(t, records, 5)
	assert.Zero(t, records[0].Backoff)
	assert.Equal(t, 10*time.Millisecond, records[1].Backoff)
}

func TestDo_SleepErrorEndsLoop(t *testing.T) {
	sleepErr := errors.New("interrupted")
	calls := 0
	_, err := Do(context.Background(),
		NewRetryer(3,
			WithBackoff(policy.RetryPolicy{InitialBackoff: time.Millisecond, BackoffMultiplier: 1}),
			withSleep(func(context.Context, time.Duration) error { return sleepErr }),
		),
		failUntil(-1, &calls),
	)
	assert.ErrorIs(t, err, sleepErr)
	assert.Equal(t, 1, calls)
}

func TestSleepWithContext(t *testing.T) {
	assert.NoError(t, sleepWithContext(context.Background(), 0))
	assert.NoError(t, sleepWithContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepWithContext(ctx, time.Hour), context.Canceled)
}

func TestNextBackoff(t *testing.T) {
	cases := []struct {
		current    time.Duration
		multiplier float64
		max        time.Duration
		want       time.Duration
	}{
		{current: 10 * time.Millisecond, multiplier: 2, max: 0, want: 20 * time.Millisecond},
		{current: 10 * time.Millisecond, multiplier: 2, max: 15 * time.Millisecond, want: 15 * time.Millisecond},
		{current: 10 * time.Millisecond, multiplier: 0, max: 0, want: 10 * time.Millisecond},
		{current: 0, multiplier: 2, max: 0, want: 0},
	}

	for _, tc := range cases {
		got := nextBackoff(tc.current, tc.multiplier, tc.max)
		assert.Equal(t, tc.want, got, "nextBackoff(%v, %v, %v)", tc.current, tc.multiplier, tc.max)
	}
}

func TestApplyJitter_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		full := applyJitter(base, policy.JitterFull)
		require.GreaterOrEqual(t, full, time.Duration(0))
		require.LessOrEqual(t, full, base)

		equal := applyJitter(base, policy.JitterEqual)
		require.GreaterOrEqual(t, equal, base/2)
		require.LessOrEqual(t, equal, base)
	}
	assert.Equal(t, base, applyJitter(base, policy.JitterNone))
}

func TestCapBackoff(t *testing.T) {
	assert.Zero(t, capBackoff(-time.Second, 0))
	assert.Equal(t, time.Millisecond, capBackoff(time.Second, time.Millisecond))
	assert.Equal(t, time.Second, capBackoff(time.Second, 0))
}
