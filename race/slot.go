package race

import "context"

type state uint8

const (
	statePending state = iota
	stateSucceeded
	stateFailed
)

func (s state) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// slot tracks one operation. val and err are written once by the operation's
// goroutine before done is closed; state is owned by the combinator.
type slot[T any] struct {
	done  chan struct{}
	val   T
	err   error
	state state
}

func newSlot[T any]() *slot[T] {
	return &slot[T]{done: make(chan struct{})}
}

func (s *slot[T]) run(ctx context.Context, op Operation[T], wake chan<- struct{}) {
	val, err := op(ctx)
	s.settle(val, err)

	select {
	case wake <- struct{}{}:
	default:
	}
}

func (s *slot[T]) settle(val T, err error) {
	s.val = val
	s.err = err
	close(s.done)
}

// tryCollect reports the result if the operation has finished, without blocking.
func (s *slot[T]) tryCollect() (T, error, bool) {
	select {
	case <-s.done:
	default:
		var zero T
		return zero, nil, false
	}

	if s.err == nil {
		s.state = stateSucceeded
	} else {
		s.state = stateFailed
	}
	return s.val, s.err, true
}
