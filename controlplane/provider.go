package controlplane

import (
	"context"

	"github.com/aponysus/firstof/policy"
)

// PolicyProvider supplies an EffectivePolicy for a PolicyKey.
type PolicyProvider interface {
	// GetEffectivePolicy returns the policy for key.
	//
	// Providers may return a non-zero policy alongside a non-nil error to
	// communicate that the policy was obtained via a fallback path.
	GetEffectivePolicy(ctx context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error)
}

// StaticProvider is an in-process PolicyProvider backed by a map and an optional default.
type StaticProvider struct {
	Policies map[policy.PolicyKey]policy.EffectivePolicy
	Default  policy.EffectivePolicy
}

func (p *StaticProvider) GetEffectivePolicy(_ context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error) {
	if p != nil && p.Policies != nil {
		if pol, ok := p.Policies[key]; ok {
			return stamp(pol, key, policy.PolicySourceStatic)
		}
	}

	if p != nil && !p.Default.IsZero() {
		return stamp(p.Default, key, policy.PolicySourceStatic)
	}

	return policy.DefaultPolicyFor(key).Normalize()
}

func stamp(pol policy.EffectivePolicy, key policy.PolicyKey, src policy.PolicySource) (policy.EffectivePolicy, error) {
	pol.Key = key
	if pol.Meta.Source == "" || pol.Meta.Source == policy.PolicySourceUnknown {
		pol.Meta.Source = src
	}
	return pol.Normalize()
}
