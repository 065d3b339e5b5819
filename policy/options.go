package policy

import "time"

// Option mutates an EffectivePolicy under construction.
type Option func(*EffectivePolicy)

// New builds a normalized policy for key ("namespace.name").
// If the options produce an invalid policy, the default policy for key is returned.
func New(key string, opts ...Option) EffectivePolicy {
	return NewFromKey(ParseKey(key), opts...)
}

// NewFromKey is New for an already structured key.
func NewFromKey(key PolicyKey, opts ...Option) EffectivePolicy {
	p := DefaultPolicyFor(key)
	p.Meta.Source = PolicySourceStatic
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}

	normalized, err := p.Normalize()
	if err != nil {
		fallback, _ := DefaultPolicyFor(key).Normalize()
		return fallback
	}
	return normalized
}

// ExtraAttempts sets how many times a failed source is invoked again.
func ExtraAttempts(n int) Option {
	return func(p *EffectivePolicy) {
		p.Retry.ExtraAttempts = n
	}
}

// NoRetry gives every source exactly one attempt.
func NoRetry() Option {
	return ExtraAttempts(0)
}

// InitialBackoff sets the pause before the first retry.
func InitialBackoff(d time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Retry.InitialBackoff = d
	}
}

// MaxBackoff caps the pause between retries.
func MaxBackoff(d time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Retry.MaxBackoff = d
	}
}

// BackoffMultiplier sets the growth factor between consecutive pauses.
func BackoffMultiplier(m float64) Option {
	return func(p *EffectivePolicy) {
		p.Retry.BackoffMultiplier = m
	}
}

// Jitter sets the jitter strategy applied to each pause.
func Jitter(kind JitterKind) Option {
	return func(p *EffectivePolicy) {
		p.Retry.Jitter = kind
	}
}

// ExponentialBackoff configures doubling pauses with equal jitter.
func ExponentialBackoff(initial, max time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Retry.InitialBackoff = initial
		p.Retry.MaxBackoff = max
		p.Retry.BackoffMultiplier = 2
		p.Retry.Jitter = JitterEqual
	}
}

// RaceTimeout bounds the whole race.
func RaceTimeout(d time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Race.Timeout = d
	}
}

// ID tags the policy with a version or revision identifier.
func ID(id string) Option {
	return func(p *EffectivePolicy) {
		p.ID = id
	}
}
