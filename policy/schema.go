package policy

import (
	"math"
	"time"
)

type JitterKind string

const (
	JitterNone  JitterKind = "none"
	JitterFull  JitterKind = "full"
	JitterEqual JitterKind = "equal"
)

// RetryPolicy controls how many times a single source is attempted.
//
// ExtraAttempts is the number of invocations allowed after the first failure,
// so a source is invoked at most ExtraAttempts+1 times and at least once.
// A zero InitialBackoff runs attempts back to back.
type RetryPolicy struct {
	ExtraAttempts int `json:"extra_attempts" yaml:"extra_attempts"`

	InitialBackoff    time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	Jitter            JitterKind    `json:"jitter" yaml:"jitter"`
}

// MaxInvocations returns the upper bound on calls to a source's operation.
func (p RetryPolicy) MaxInvocations() int {
	switch {
	case p.ExtraAttempts < 0:
		return 1
	case p.ExtraAttempts == math.MaxInt:
		return math.MaxInt
	}
	return p.ExtraAttempts + 1
}

// RacePolicy controls the race as a whole.
type RacePolicy struct {
	// Timeout bounds how long the caller waits for a winner. Zero waits until
	// every source has settled.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type PolicySource string

const (
	PolicySourceUnknown PolicySource = "unknown"
	PolicySourceStatic  PolicySource = "static"
	PolicySourceFile    PolicySource = "file"
	PolicySourceRemote  PolicySource = "remote"
	PolicySourceDefault PolicySource = "default"
)

type NormalizationInfo struct {
	Changed       bool     `json:"-" yaml:"-"`
	ChangedFields []string `json:"-" yaml:"-"`
}

type Metadata struct {
	Source        PolicySource      `json:"-" yaml:"-"`
	Normalization NormalizationInfo `json:"-" yaml:"-"`
}

type EffectivePolicy struct {
	Key   PolicyKey   `json:"key" yaml:"key"`
	ID    string      `json:"id,omitempty" yaml:"id,omitempty"`
	Retry RetryPolicy `json:"retry" yaml:"retry"`
	Race  RacePolicy  `json:"race" yaml:"race"`

	Meta Metadata `json:"-" yaml:"-"`
}

// DefaultExtraAttempts is the retry count used when no policy is configured.
const DefaultExtraAttempts = 3

func DefaultPolicyFor(key PolicyKey) EffectivePolicy {
	return EffectivePolicy{
		Key: key,
		Retry: RetryPolicy{
			ExtraAttempts:     DefaultExtraAttempts,
			InitialBackoff:    0,
			MaxBackoff:        0,
			BackoffMultiplier: 0,
			Jitter:            JitterNone,
		},
		Race: RacePolicy{
			Timeout: 0,
		},
		Meta: Metadata{
			Source: PolicySourceDefault,
		},
	}
}

// IsZero reports whether p carries no configuration at all.
func (p EffectivePolicy) IsZero() bool {
	return p.Key == (PolicyKey{}) &&
		p.ID == "" &&
		p.Retry == (RetryPolicy{}) &&
		p.Race == (RacePolicy{})
}

const (
	minBackoffFloor      = 1 * time.Millisecond
	maxBackoffCeiling    = 30 * time.Second
	maxBackoffMultiplier = 10.0
	minTimeoutFloor      = 1 * time.Millisecond
)

// MaxExtraAttempts caps RetryPolicy.ExtraAttempts during normalization.
const MaxExtraAttempts = 100

func (p EffectivePolicy) Normalize() (EffectivePolicy, error) {
	normalized := p
	norm := &normalized.Meta.Normalization

	markChanged := func(field string) {
		norm.Changed = true
		for _, f := range norm.ChangedFields {
			if f == field {
				return
			}
		}
		norm.ChangedFields = append(norm.ChangedFields, field)
	}

	if normalized.Retry.ExtraAttempts < 0 {
		normalized.Retry.ExtraAttempts = 0
		markChanged("retry.extra_attempts")
	} else if normalized.Retry.ExtraAttempts > MaxExtraAttempts {
		normalized.Retry.ExtraAttempts = MaxExtraAttempts
		markChanged("retry.extra_attempts")
	}

	switch normalized.Retry.Jitter {
	case "":
		normalized.Retry.Jitter = JitterNone
		markChanged("retry.jitter")
	case JitterNone, JitterFull, JitterEqual:
	default:
		return EffectivePolicy{}, &NormalizeError{Field: "retry.jitter", Value: string(normalized.Retry.Jitter)}
	}

	if normalized.Race.Timeout < 0 {
		normalized.Race.Timeout = 0
		markChanged("race.timeout")
	}
	if normalized.Race.Timeout > 0 && normalized.Race.Timeout < minTimeoutFloor {
		normalized.Race.Timeout = minTimeoutFloor
		markChanged("race.timeout")
	}

	if normalized.Retry.InitialBackoff <= 0 {
		if normalized.Retry.InitialBackoff < 0 {
			markChanged("retry.initial_backoff")
		}
		// Without an initial backoff the remaining backoff fields are inert.
		normalized.Retry.InitialBackoff = 0
		return normalized, nil
	}
	if normalized.Retry.InitialBackoff < minBackoffFloor {
		normalized.Retry.InitialBackoff = minBackoffFloor
		markChanged("retry.initial_backoff")
	}

	if normalized.Retry.MaxBackoff <= 0 {
		normalized.Retry.MaxBackoff = 250 * time.Millisecond
		markChanged("retry.max_backoff")
	}
	if normalized.Retry.MaxBackoff > maxBackoffCeiling {
		normalized.Retry.MaxBackoff = maxBackoffCeiling
		markChanged("retry.max_backoff")
	}
	if normalized.Retry.MaxBackoff < normalized.Retry.InitialBackoff {
		normalized.Retry.MaxBackoff = normalized.Retry.InitialBackoff
		markChanged("retry.max_backoff")
	}

	if normalized.Retry.BackoffMultiplier == 0 {
		normalized.Retry.BackoffMultiplier = 2
		markChanged("retry.backoff_multiplier")
	}
	if normalized.Retry.BackoffMultiplier < 1 {
		normalized.Retry.BackoffMultiplier = 1
		markChanged("retry.backoff_multiplier")
	} else if normalized.Retry.BackoffMultiplier > maxBackoffMultiplier {
		normalized.Retry.BackoffMultiplier = maxBackoffMultiplier
		markChanged("retry.backoff_multiplier")
	}

	return normalized, nil
}
