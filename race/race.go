// Package race drives a fixed set of operations concurrently and resolves with
// the first success, or with the last observed failure once every operation
// has failed.
//
// # Scheduling
//
// Each operation runs on its own goroutine and, when it finishes, stores its
// result in a per-operation slot and signals a shared wake channel. The
// combinator itself never blocks inside an activation: an activation ("pass")
// scans the slots in their original order and inspects every slot that is
// still pending without waiting on it. Between passes the combinator parks on
// the wake channel.
//
// Within one pass:
//
//   - the first settled success in scan order wins and ends the race;
//   - every settled failure is recorded as the last error and the scan goes on;
//   - settled slots are never inspected again.
//
// When several operations settle between two passes the lowest index wins,
// regardless of which goroutine finished first.
//
// # Losers
//
// Losing operations are not cancelled. They receive the caller's context, keep
// running after the race resolves, and their results are dropped. Callers that
// need losers stopped must cancel the context they pass to Run.
package race

import (
	"context"
	"strconv"
)

// Operation produces exactly one result per invocation.
type Operation[T any] func(ctx context.Context) (T, error)

// Outcome is the result of a race.
type Outcome[T any] struct {
	Value T
	Err   error

	// Index is the position of the operation that produced the outcome: the
	// winner on success, the owner of the last error on failure. It is -1 when
	// the race ended because ctx was done.
	Index int
}

// OK reports whether the race produced a value.
func (o Outcome[T]) OK() bool { return o.Err == nil && o.Index >= 0 }

// SettleFunc is called once per operation, in scan order, when a pass first
// observes that the operation has finished.
type SettleFunc func(index int, pass int, err error)

// Option configures a Race.
type Option func(*options)

type options struct {
	onSettle SettleFunc
}

// WithSettleHook registers fn to observe every settled operation.
func WithSettleHook(fn SettleFunc) Option {
	return func(o *options) {
		o.onSettle = fn
	}
}

// Race is a single-use combinator over a non-empty, ordered set of operations.
// It is not safe for concurrent use.
type Race[T any] struct {
	ops   []Operation[T]
	slots []*slot[T]
	opts  options

	// wake has capacity one: a finished operation leaves at most one pending
	// wake-up, which is enough because a pass inspects every pending slot.
	wake chan struct{}

	pending int
	lastErr error
	lastIdx int
	passes  int
	used    bool
}

// New prepares a race over ops. It panics if ops is empty or contains a nil
// operation; both are programming errors.
func New[T any](ops []Operation[T], opts ...Option) *Race[T] {
	if len(ops) == 0 {
		panic("race: operation collection must not be empty")
	}
	for i, op := range ops {
		if op == nil {
			panic("race: nil operation at index " + strconv.Itoa(i))
		}
	}

	r := &Race[T]{
		ops:     append([]Operation[T](nil), ops...),
		slots:   make([]*slot[T], len(ops)),
		wake:    make(chan struct{}, 1),
		pending: len(ops),
		lastIdx: -1,
	}
	for i := range r.slots {
		r.slots[i] = newSlot[T]()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&r.opts)
		}
	}
	return r
}

// Len returns the number of operations in the race.
func (r *Race[T]) Len() int { return len(r.ops) }

// Pending returns how many operations have not been observed as settled.
func (r *Race[T]) Pending() int { return r.pending }

// Passes returns the number of activations performed so far.
func (r *Race[T]) Passes() int { return r.passes }

// Run starts every operation and blocks until the race resolves or ctx is done.
// It panics when called a second time.
func (r *Race[T]) Run(ctx context.Context) Outcome[T] {
	if r.used {
		panic("race: Run called on a consumed race")
	}
	r.used = true

	if ctx == nil {
		ctx = context.Background()
	}

	for i, op := range r.ops {
		go r.slots[i].run(ctx, op, r.wake)
	}

	for {
		if out, done := r.poll(); done {
			return out
		}

		select {
		case <-r.wake:
		case <-ctx.Done():
			return Outcome[T]{Err: ctx.Err(), Index: -1}
		}
	}
}

// Wait is Run in the (value, error) form.
func (r *Race[T]) Wait(ctx context.Context) (T, error) {
	out := r.Run(ctx)
	return out.Value, out.Err
}

// poll performs one activation.
func (r *Race[T]) poll() (Outcome[T], bool) {
	r.passes++

	for i, s := range r.slots {
		if s.state != statePending {
			continue
		}

		val, err, ok := s.tryCollect()
		if !ok {
			continue
		}
		r.pending--

		if r.opts.onSettle != nil {
			r.opts.onSettle(i, r.passes, err)
		}

		if err == nil {
			return Outcome[T]{Value: val, Index: i}, true
		}
		r.lastErr = err
		r.lastIdx = i
	}

	if r.pending == 0 {
		return Outcome[T]{Err: r.lastErr, Index: r.lastIdx}, true
	}
	return Outcome[T]{}, false
}

// First builds a race over ops and waits for its outcome.
func First[T any](ctx context.Context, ops ...Operation[T]) (T, error) {
	return New(ops).Wait(ctx)
}
