package observe

import (
	"context"
	"time"

	"github.com/aponysus/firstof/policy"
)

// AttemptRecord describes a single invocation of a source's operation.
type AttemptRecord struct {
	// Source is the position of the source in the race, or -1 outside a race.
	Source    int
	Attempt   int
	StartTime time.Time
	EndTime   time.Time

	Err      error
	Panicked bool

	Backoff time.Duration // pause before this attempt
}

// SettleRecord describes a source whose retries are finished.
type SettleRecord struct {
	Source int
	Time   time.Time
	Err    error

	// Pass is the combinator activation that observed the settlement.
	Pass int
}

// Timeline is the structured record of a single race.
type Timeline struct {
	Key      policy.PolicyKey
	PolicyID string
	RaceID   string
	Sources  int
	Start    time.Time
	End      time.Time

	// Attributes holds race-level metadata (policy source, fallbacks, normalization notes).
	Attributes map[string]string

	Attempts []AttemptRecord
	Settles  []SettleRecord

	// Winner is the index of the source whose value was returned, or -1.
	Winner   int
	Passes   int
	FinalErr error
}

// Observer receives lifecycle callbacks for a single race.
//
// OnAttempt is called from the goroutine running the attempt and may be
// invoked concurrently for different sources.
type Observer interface {
	OnStart(ctx context.Context, key policy.PolicyKey, pol policy.EffectivePolicy, sources int)
	OnAttempt(ctx context.Context, key policy.PolicyKey, rec AttemptRecord)
	OnSettle(ctx context.Context, key policy.PolicyKey, rec SettleRecord)

	OnSuccess(ctx context.Context, key policy.PolicyKey, tl Timeline)
	OnFailure(ctx context.Context, key policy.PolicyKey, tl Timeline)
}
