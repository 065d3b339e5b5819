package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aponysus/firstof/controlplane"
	"github.com/aponysus/firstof/policy"
)

func TestResolve_DefaultProvider(t *testing.T) {
	pol, attrs := New().resolve(context.Background(), testKey)

	assert.Equal(t, testKey, pol.Key)
	assert.Equal(t, policy.DefaultExtraAttempts, pol.Retry.ExtraAttempts)
	assert.Equal(t, string(policy.PolicySourceDefault), attrs["policy_source"])
	assert.NotContains(t, attrs, "policy_error")
}

func TestResolve_StaticPolicy(t *testing.T) {
	p := &controlplane.StaticProvider{Policies: map[policy.PolicyKey]policy.EffectivePolicy{
		testKey: {Retry: policy.RetryPolicy{ExtraAttempts: 7}},
	}}

	pol, attrs := New(WithProvider(p)).resolve(context.Background(), testKey)
	assert.Equal(t, 7, pol.Retry.ExtraAttempts)
	assert.Equal(t, string(policy.PolicySourceStatic), attrs["policy_source"])
}

func TestResolve_ProviderErrorFallsBackAndWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	errGone := errors.New("gone")
	f := New(WithProvider(failingProvider{err: errGone}), WithLogger(zap.New(core)))

	pol, attrs := f.resolve(context.Background(), testKey)
	assert.Equal(t, policy.DefaultExtraAttempts, pol.Retry.ExtraAttempts)
	assert.Equal(t, "gone", attrs["policy_error"])

	entries := logs.FilterMessage("policy provider failed, using default policy").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "downloads.binary", entries[0].ContextMap()["key"])
}

func TestResolve_ProviderPanicRecovered(t *testing.T) {
	pol, attrs := New(WithProvider(panickingProvider{})).resolve(context.Background(), testKey)

	assert.Equal(t, policy.DefaultExtraAttempts, pol.Retry.ExtraAttempts)
	assert.Contains(t, attrs["policy_error"], "provider exploded")
}

func TestResolve_ProviderPanicPropagatesWhenRecoveryDisabled(t *testing.T) {
	f := New(WithProvider(panickingProvider{}), WithRecoverPanics(false))
	assert.Panics(t, func() { f.resolve(context.Background(), testKey) })
}

func TestResolve_ProviderRejectsInvalidPolicy(t *testing.T) {
	p := &controlplane.StaticProvider{Default: policy.EffectivePolicy{
		Retry: policy.RetryPolicy{ExtraAttempts: 1, Jitter: "sideways"},
	}}

	pol, attrs := New(WithProvider(p)).resolve(context.Background(), testKey)
	assert.Equal(t, policy.DefaultExtraAttempts, pol.Retry.ExtraAttempts)
	assert.Contains(t, attrs["policy_error"], "retry.jitter")
}

func TestResolve_InvalidPolicyFallsBack(t *testing.T) {
	raw := rawProvider{pol: policy.EffectivePolicy{
		Retry: policy.RetryPolicy{ExtraAttempts: 1, Jitter: "sideways"},
	}}

	pol, attrs := New(WithProvider(raw)).resolve(context.Background(), testKey)
	assert.Equal(t, policy.DefaultExtraAttempts, pol.Retry.ExtraAttempts)
	assert.Contains(t, attrs["policy_error"], "normalization_failed")
}

func TestResolve_FallbackPolicyFromProviderIsKept(t *testing.T) {
	raw := rawProvider{
		pol: policy.EffectivePolicy{Retry: policy.RetryPolicy{ExtraAttempts: 5}},
		err: errors.New("stale cache"),
	}

	pol, attrs := New(WithProvider(raw)).resolve(context.Background(), testKey)
	assert.Equal(t, 5, pol.Retry.ExtraAttempts)
	assert.Equal(t, "stale cache", attrs["policy_error"])
}

func TestNew_IgnoresNilOptions(t *testing.T) {
	var typedNil *controlplane.StaticProvider
	f := New(nil, WithProvider(nil), WithProvider(typedNil), WithObserver(nil), WithLogger(nil), WithClock(nil))

	assert.NotNil(t, f.provider)
	assert.NotNil(t, f.observer)
	assert.NotNil(t, f.logger)
	assert.NotNil(t, f.clock)
	assert.True(t, f.recoverPanics)
}

func TestFirst_LogsRace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := New(WithLogger(zap.New(core)))

	_, found := First(context.Background(), f, testKey, sources(succeeding("v")))
	require.True(t, found)

	started := logs.FilterMessage("race started").All()
	require.Len(t, started, 1)
	assert.Equal(t, "fetch", started[0].LoggerName)
	assert.EqualValues(t, 1, started[0].ContextMap()["sources"])
	assert.Equal(t, 1, logs.FilterMessage("race won").Len())
}
