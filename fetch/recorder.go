package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

// recorder collects the attempts and settlements of one race and forwards
// them to the Fetcher's observer. Attempts arrive from source goroutines.
type recorder struct {
	observe.BaseObserver

	next  observe.Observer
	key   policy.PolicyKey
	clock func() time.Time

	mu       sync.Mutex
	attempts []observe.AttemptRecord
	settles  []observe.SettleRecord
}

func newRecorder(next observe.Observer, key policy.PolicyKey, clock func() time.Time) *recorder {
	return &recorder{next: next, key: key, clock: clock}
}

func (r *recorder) OnAttempt(ctx context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	r.mu.Lock()
	r.attempts = append(r.attempts, rec)
	r.mu.Unlock()

	r.next.OnAttempt(ctx, key, rec)
}

func (r *recorder) settle(ctx context.Context, index, pass int, err error) {
	rec := observe.SettleRecord{
		Source: index,
		Time:   r.clock(),
		Err:    err,
		Pass:   pass,
	}

	r.mu.Lock()
	r.settles = append(r.settles, rec)
	r.mu.Unlock()

	r.next.OnSettle(ctx, r.key, rec)
}

// fill copies what has been recorded so far into tl. Losers that finish later
// are still forwarded to the observer but no longer appear in tl.
func (r *recorder) fill(tl *observe.Timeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tl.Attempts = append([]observe.AttemptRecord(nil), r.attempts...)
	tl.Settles = append([]observe.SettleRecord(nil), r.settles...)
}
