// Package fetch races retry-wrapped sources and keeps the first value that
// arrives.
//
// For every call the Fetcher resolves an EffectivePolicy, wraps each source in
// a Retryer built from that policy, and hands the wrapped operations to a
// race. A winning value is returned as (value, true). When every source has
// exhausted its attempts the result is (zero, false); the error itself is only
// visible to observers and to timeline capture.
package fetch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aponysus/firstof/controlplane"
	"github.com/aponysus/firstof/internal"
	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

// Fetcher runs races. It is immutable after construction and safe for
// concurrent use.
type Fetcher struct {
	provider      controlplane.PolicyProvider
	observer      observe.Observer
	logger        *zap.Logger
	clock         func() time.Time
	recoverPanics bool
	newRaceID     func() string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithProvider sets where policies come from. The default is a StaticProvider
// with no entries, which yields DefaultPolicyFor for every key.
func WithProvider(p controlplane.PolicyProvider) Option {
	return func(f *Fetcher) {
		if internal.IsTypedNil(p) {
			return
		}
		f.provider = p
	}
}

// WithPolicy uses pol for every key.
func WithPolicy(pol policy.EffectivePolicy) Option {
	return WithProvider(&controlplane.StaticProvider{Default: pol})
}

func WithObserver(o observe.Observer) Option {
	return func(f *Fetcher) {
		if internal.IsTypedNil(o) {
			return
		}
		f.observer = o
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(f *Fetcher) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// WithRecoverPanics controls whether a panicking source or policy provider is
// turned into a failure. It is enabled by default: a losing source keeps
// running after the race resolves, and a panic there would otherwise take
// down the process.
func WithRecoverPanics(enabled bool) Option {
	return func(f *Fetcher) {
		f.recoverPanics = enabled
	}
}

// New returns a Fetcher configured by opts.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		provider:      &controlplane.StaticProvider{},
		observer:      observe.NoopObserver{},
		logger:        zap.NewNop(),
		clock:         time.Now,
		recoverPanics: true,
		newRaceID:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	f.logger = f.logger.Named("fetch")
	return f
}

// ProviderPanicError reports a policy provider that panicked while resolving key.
type ProviderPanicError struct {
	Key   policy.PolicyKey
	Value any
	Stack []byte
}

func (e *ProviderPanicError) Error() string {
	return fmt.Sprintf("firstof: policy provider panicked for %s: %v", e.Key, e.Value)
}

func (f *Fetcher) lookup(ctx context.Context, key policy.PolicyKey) (pol policy.EffectivePolicy, err error) {
	if f.recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				pol = policy.EffectivePolicy{}
				err = &ProviderPanicError{Key: key, Value: r, Stack: debug.Stack()}
			}
		}()
	}
	return f.provider.GetEffectivePolicy(ctx, key)
}

// resolve never fails: provider and normalization errors degrade to the
// default policy and are recorded in the returned attributes.
func (f *Fetcher) resolve(ctx context.Context, key policy.PolicyKey) (policy.EffectivePolicy, map[string]string) {
	attrs := make(map[string]string, 2)

	pol, err := f.lookup(ctx, key)
	if err != nil {
		f.logger.Warn("policy provider failed, using default policy",
			zap.Stringer("key", key),
			zap.Error(err),
		)
		attrs["policy_error"] = err.Error()
	}
	if pol.IsZero() {
		pol = policy.DefaultPolicyFor(key)
	}
	pol.Key = key

	normalized, nerr := pol.Normalize()
	if nerr != nil {
		f.logger.Warn("policy rejected, using default policy",
			zap.Stringer("key", key),
			zap.Error(nerr),
		)
		attrs["policy_error"] = "normalization_failed: " + nerr.Error()
		normalized, _ = policy.DefaultPolicyFor(key).Normalize()
	}

	attrs["policy_source"] = string(normalized.Meta.Source)
	return normalized, attrs
}
