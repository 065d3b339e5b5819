package controlplane

import (
	"sync"
	"time"

	"github.com/aponysus/firstof/policy"
)

type cacheEntry struct {
	policy    policy.EffectivePolicy
	expiresAt time.Time
	found     bool // false marks a cached miss
}

// PolicyCache holds policies and known misses until their TTL runs out.
// It is safe for concurrent use.
type PolicyCache struct {
	mu      sync.RWMutex
	entries map[policy.PolicyKey]cacheEntry
	nowFn   func() time.Time
}

func NewPolicyCache() *PolicyCache {
	return &PolicyCache{
		entries: make(map[policy.PolicyKey]cacheEntry),
	}
}

// Get returns the cached entry for key.
//
// foundInCache is false when there is no live entry. A live miss reports
// foundInCache and isNegative together, with a zero policy.
func (c *PolicyCache) Get(key policy.PolicyKey) (pol policy.EffectivePolicy, foundInCache bool, isNegative bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return policy.EffectivePolicy{}, false, false
	}
	return entry.policy, true, !entry.found
}

func (c *PolicyCache) Set(key policy.PolicyKey, pol policy.EffectivePolicy, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		policy:    pol,
		expiresAt: c.now().Add(ttl),
		found:     true,
	}
}

// SetMissing records that key has no policy.
func (c *PolicyCache) SetMissing(key policy.PolicyKey, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{expiresAt: c.now().Add(ttl)}
}

func (c *PolicyCache) Invalidate(key policy.PolicyKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports how many entries, live or expired, are held.
func (c *PolicyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *PolicyCache) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	return time.Now()
}
