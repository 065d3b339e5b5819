package controlplane

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aponysus/firstof/policy"
)

// FileProvider serves policies from a YAML document on disk.
// It is safe for concurrent use; Reload swaps the whole policy set atomically.
type FileProvider struct {
	path string

	mu       sync.RWMutex
	policies map[policy.PolicyKey]policy.EffectivePolicy
	fallback *policy.EffectivePolicy
}

// NewFileProvider reads and validates the document at path.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the document. On error the previous policy set is kept.
func (p *FileProvider) Reload() error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer f.Close()

	doc, err := policy.ParseYAML(f)
	if err != nil {
		return fmt.Errorf("firstof: load %s: %w", p.path, err)
	}

	policies := make(map[policy.PolicyKey]policy.EffectivePolicy, len(doc.Policies))
	for _, pol := range doc.Policies {
		policies[pol.Key] = pol
	}

	p.mu.Lock()
	p.policies = policies
	p.fallback = doc.Default
	p.mu.Unlock()
	return nil
}

func (p *FileProvider) GetEffectivePolicy(_ context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error) {
	pol, err := p.lookup(key)
	if err != nil {
		return policy.EffectivePolicy{}, err
	}
	return stamp(pol, key, policy.PolicySourceFile)
}

// GetPolicy re-reads the document and returns the raw policy for key, which
// makes a FileProvider usable as the Source of a RemoteProvider. A failed
// reload keeps serving the previous document.
func (p *FileProvider) GetPolicy(_ context.Context, key policy.PolicyKey) (policy.EffectivePolicy, error) {
	_ = p.Reload()
	return p.lookup(key)
}

func (p *FileProvider) lookup(key policy.PolicyKey) (policy.EffectivePolicy, error) {
	p.mu.RLock()
	pol, ok := p.policies[key]
	fallback := p.fallback
	p.mu.RUnlock()

	if ok {
		return pol, nil
	}
	if fallback != nil {
		pol = *fallback
		pol.Key = key
		return pol, nil
	}
	return policy.EffectivePolicy{}, fmt.Errorf("%w: %s", ErrPolicyNotFound, key)
}
