// Package source defines what the fetch orchestrator races: anything that can
// produce one value per call.
package source

import (
	"context"
)

// Source produces a value, or an error when this attempt failed. Fetch may be
// called more than once; each call is an independent attempt.
type Source[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// Func adapts a plain function to a Source.
type Func[T any] func(ctx context.Context) (T, error)

func (f Func[T]) Fetch(ctx context.Context) (T, error) { return f(ctx) }

// Operation returns the attempt factory for s. Every call to the returned
// function starts a fresh Fetch.
func Operation[T any](s Source[T]) func(context.Context) (T, error) {
	if f, ok := s.(Func[T]); ok {
		return f
	}
	return s.Fetch
}

// Of collects sources of the same kind into a slice.
func Of[T any, S Source[T]](sources ...S) []Source[T] {
	out := make([]Source[T], len(sources))
	for i, s := range sources {
		out[i] = s
	}
	return out
}
