package retry

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/aponysus/firstof/internal"
	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

// Operation starts one fresh attempt. Each call must be independent of the
// previous ones: the Retryer never reuses a result.
type Operation[T any] func(ctx context.Context) (T, error)

// Retryer re-invokes a failed operation a fixed number of extra times.
//
// The zero extra-attempt count still invokes the operation once. A Retryer is
// immutable after construction and safe for concurrent use.
type Retryer struct {
	extraAttempts int
	backoff       policy.RetryPolicy
	observer      observe.Observer
	clock         func() time.Time
	sleep         func(context.Context, time.Duration) error
	recoverPanics bool
}

// Option configures a Retryer.
type Option func(*Retryer)

// WithObserver reports every attempt to o.
func WithObserver(o observe.Observer) Option {
	return func(r *Retryer) {
		if internal.IsTypedNil(o) {
			return
		}
		r.observer = o
	}
}

// WithClock sets the clock used for attempt timestamps.
func WithClock(f func() time.Time) Option {
	return func(r *Retryer) {
		if f != nil {
			r.clock = f
		}
	}
}

// WithBackoff pauses between attempts according to the backoff fields of pol.
// Its ExtraAttempts field is ignored.
func WithBackoff(pol policy.RetryPolicy) Option {
	return func(r *Retryer) {
		r.backoff = pol
	}
}

// WithRecoverPanics turns a panicking attempt into a *PanicError failure.
func WithRecoverPanics(recover bool) Option {
	return func(r *Retryer) {
		r.recoverPanics = recover
	}
}

// NewRetryer returns a Retryer allowing extraAttempts invocations after the
// first failure. Negative values are treated as zero.
func NewRetryer(extraAttempts int, opts ...Option) *Retryer {
	if extraAttempts < 0 {
		extraAttempts = 0
	}
	r := &Retryer{
		extraAttempts: extraAttempts,
		observer:      observe.NoopObserver{},
		clock:         time.Now,
		sleep:         sleepWithContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// FromPolicy builds a Retryer from the retry section of a policy.
func FromPolicy(pol policy.RetryPolicy, opts ...Option) *Retryer {
	return NewRetryer(pol.ExtraAttempts, append([]Option{WithBackoff(pol)}, opts...)...)
}

// ExtraAttempts returns the configured retry count.
func (r *Retryer) ExtraAttempts() int { return r.extraAttempts }

// PanicError is the failure produced by a recovered panic inside an attempt.
type PanicError struct {
	Source  int
	Attempt int
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("firstof: panic in source %d attempt %d: %v", e.Source, e.Attempt, e.Value)
}

// Do invokes op until it succeeds or the extra attempts are used up, and
// returns the result of the last invocation unchanged.
//
// The first invocation always happens. Before each retry ctx is checked; a
// done context ends the loop with ctx.Err().
func Do[T any](ctx context.Context, r *Retryer, op Operation[T]) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		r = NewRetryer(0)
	}

	info, ok := observe.RaceFromContext(ctx)
	if !ok {
		info.Source = -1
	}

	backoff := r.backoff.InitialBackoff

	var (
		val         T
		err         error
		lastBackoff time.Duration
	)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if cerr := ctx.Err(); cerr != nil {
				return val, cerr
			}
		}

		attemptCtx := observe.WithAttemptInfo(ctx, observe.AttemptInfo{
			Source:  info.Source,
			Attempt: attempt,
			RaceID:  info.RaceID,
		})

		start := r.clock()
		var panicked bool
		val, panicked, err = invoke(attemptCtx, r.recoverPanics, op)
		if pe, isPanic := err.(*PanicError); isPanic && panicked {
			pe.Source = info.Source
			pe.Attempt = attempt
		}

		r.observer.OnAttempt(ctx, info.Key, observe.AttemptRecord{
			Source:    info.Source,
			Attempt:   attempt,
			StartTime: start,
			EndTime:   r.clock(),
			Err:       err,
			Panicked:  panicked,
			Backoff:   lastBackoff,
		})

		if err == nil {
			return val, nil
		}
		if attempt >= r.extraAttempts {
			break
		}

		sleepFor := computeSleep(backoff, r.backoff)
		lastBackoff = sleepFor
		if sleepFor > 0 {
			if serr := r.sleep(ctx, sleepFor); serr != nil {
				return val, serr
			}
		}
		backoff = nextBackoff(backoff, r.backoff.BackoffMultiplier, r.backoff.MaxBackoff)
	}

	return val, err
}

// Wrap returns op with the retry loop of r baked in.
func Wrap[T any](r *Retryer, op Operation[T]) Operation[T] {
	return func(ctx context.Context) (T, error) {
		return Do(ctx, r, op)
	}
}

func invoke[T any](ctx context.Context, recoverPanics bool, op Operation[T]) (val T, panicked bool, err error) {
	if recoverPanics {
		defer func() {
			if rec := recover(); rec != nil {
				var zero T
				val = zero
				panicked = true
				err = &PanicError{Value: rec, Stack: debug.Stack()}
			}
		}()
	}
	val, err = op(ctx)
	return val, false, err
}
