package controlplane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aponysus/firstof/internal"
	"github.com/aponysus/firstof/policy"
)

const (
	DefaultCacheTTL         = 1 * time.Minute
	DefaultNegativeCacheTTL = 10 * time.Second
)

// Source fetches raw, unnormalized policies.
type Source interface {
	// GetPolicy returns the policy for key, or ErrPolicyNotFound.
	GetPolicy(ctx context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error)
}

// RemoteProvider serves policies from a Source through a PolicyCache, so a
// race does not hit the Source every time it resolves its policy.
type RemoteProvider struct {
	source           Source
	cache            *PolicyCache
	cacheTTL         time.Duration
	negativeCacheTTL time.Duration
}

type RemoteProviderOption func(*RemoteProvider)

// WithCacheTTL sets how long a fetched policy is reused. Default is one minute.
func WithCacheTTL(ttl time.Duration) RemoteProviderOption {
	return func(p *RemoteProvider) {
		p.cacheTTL = ttl
	}
}

// WithNegativeCacheTTL sets how long a missing policy is remembered.
// Default is ten seconds.
func WithNegativeCacheTTL(ttl time.Duration) RemoteProviderOption {
	return func(p *RemoteProvider) {
		p.negativeCacheTTL = ttl
	}
}

func NewRemoteProvider(source Source, opts ...RemoteProviderOption) *RemoteProvider {
	if source == nil || internal.IsTypedNil(source) {
		panic("controlplane: nil source")
	}
	p := &RemoteProvider{
		source:           source,
		cache:            NewPolicyCache(),
		cacheTTL:         DefaultCacheTTL,
		negativeCacheTTL: DefaultNegativeCacheTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *RemoteProvider) GetEffectivePolicy(ctx context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error) {
	pol, cached, negative := p.cache.Get(key)
	if cached {
		if negative {
			return policy.EffectivePolicy{}, ErrPolicyNotFound
		}
		return pol, nil
	}

	pol, err := p.source.GetPolicy(ctx, key)
	if err != nil {
		if errors.Is(err, ErrPolicyNotFound) {
			p.cache.SetMissing(key, p.negativeCacheTTL)
			return policy.EffectivePolicy{}, ErrPolicyNotFound
		}
		// Fetch errors are not cached; the next race asks again.
		return policy.EffectivePolicy{}, err
	}

	pol.Key = key
	if pol.Meta.Source == "" || pol.Meta.Source == policy.PolicySourceUnknown {
		pol.Meta.Source = policy.PolicySourceRemote
	}
	normalized, err := pol.Normalize()
	if err != nil {
		return policy.EffectivePolicy{}, err
	}

	p.cache.Set(key, normalized, p.cacheTTL)
	return normalized, nil
}

// HTTPSource reads a YAML policy document from a URL on every fetch.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) GetPolicy(ctx context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return policy.EffectivePolicy{}, err
	}
	req.Header.Set("Accept", "application/yaml")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return policy.EffectivePolicy{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return policy.EffectivePolicy{}, fmt.Errorf("%w: %s", ErrPolicyNotFound, key)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return policy.EffectivePolicy{}, fmt.Errorf("%w: GET %s: %s", ErrProviderUnavailable, s.URL, resp.Status)
	}

	doc, err := policy.ParseYAML(resp.Body)
	if err != nil {
		return policy.EffectivePolicy{}, fmt.Errorf("firstof: load %s: %w", s.URL, err)
	}
	pol, ok := doc.Lookup(key)
	if !ok {
		return policy.EffectivePolicy{}, fmt.Errorf("%w: %s", ErrPolicyNotFound, key)
	}
	pol.Meta.Source = policy.PolicySourceRemote
	return pol, nil
}
