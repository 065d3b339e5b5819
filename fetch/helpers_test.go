package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
	"github.com/aponysus/firstof/source"
)

var errDown = errors.New("source down")

var testKey = policy.PolicyKey{Namespace: "downloads", Name: "binary"}

// counting is a source that fails until its k-th call (k <= 0: never succeeds)
// after an optional delay per call.
type counting struct {
	value string
	k     int32
	delay time.Duration
	calls atomic.Int32
}

func (c *counting) Fetch(ctx context.Context) (string, error) {
	n := c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.k > 0 && n >= c.k {
		return c.value, nil
	}
	return "", errDown
}

func succeeding(value string) *counting { return &counting{value: value, k: 1} }

func failing() *counting { return &counting{} }

func slow(value string, d time.Duration) *counting {
	return &counting{value: value, k: 1, delay: d}
}

func sources(cs ...*counting) []source.Source[string] {
	return source.Of[string](cs...)
}

type eventLog struct {
	observe.BaseObserver

	mu        sync.Mutex
	starts    int
	attempts  []observe.AttemptRecord
	settles   []observe.SettleRecord
	successes []observe.Timeline
	failures  []observe.Timeline
}

func (e *eventLog) OnStart(context.Context, policy.PolicyKey, policy.EffectivePolicy, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
}

func (e *eventLog) OnAttempt(_ context.Context, _ policy.PolicyKey, rec observe.AttemptRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts = append(e.attempts, rec)
}

func (e *eventLog) OnSettle(_ context.Context, _ policy.PolicyKey, rec observe.SettleRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settles = append(e.settles, rec)
}

func (e *eventLog) OnSuccess(_ context.Context, _ policy.PolicyKey, tl observe.Timeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.successes = append(e.successes, tl)
}

func (e *eventLog) OnFailure(_ context.Context, _ policy.PolicyKey, tl observe.Timeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures = append(e.failures, tl)
}

type failingProvider struct{ err error }

func (p failingProvider) GetEffectivePolicy(context.Context, policy.PolicyKey) (policy.EffectivePolicy, error) {
	return policy.EffectivePolicy{}, p.err
}

type panickingProvider struct{}

func (panickingProvider) GetEffectivePolicy(context.Context, policy.PolicyKey) (policy.EffectivePolicy, error) {
	panic("provider exploded")
}

type rawProvider struct {
	pol policy.EffectivePolicy
	err error
}

func (p rawProvider) GetEffectivePolicy(context.Context, policy.PolicyKey) (policy.EffectivePolicy, error) {
	return p.pol, p.err
}
