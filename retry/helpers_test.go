package retry

import (
	"context"
	"sync"
	"time"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

func withSleep(f func(context.Context, time.Duration) error) Option {
	return func(r *Retryer) {
		r.sleep = f
	}
}

type recordedSleeps struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return nil
}

type attemptRecorder struct {
	observe.BaseObserver

	mu      sync.Mutex
	keys    []policy.PolicyKey
	records []observe.AttemptRecord
}

func (a *attemptRecorder) OnAttempt(_ context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	a.records = append(a.records, rec)
}

func (a *attemptRecorder) snapshot() []observe.AttemptRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]observe.AttemptRecord(nil), a.records...)
}

// failUntil returns an operation that fails until its k-th call and counts calls.
func failUntil(k int, calls *int) Operation[string] {
	return func(context.Context) (string, error) {
		*calls++
		if *calls == k {
			return "ok", nil
		}
		return "", errNope
	}
}
