// Package firstof is the short form of package fetch for programs that use a
// single process-wide Fetcher.
package firstof

import (
	"context"

	"github.com/aponysus/firstof/fetch"
	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
	"github.com/aponysus/firstof/source"
)

// Key is the structured form of a policy key.
type Key = policy.PolicyKey

// ParseKey parses "namespace.name" into a Key.
func ParseKey(s string) Key { return policy.ParseKey(s) }

// Init sets the global default fetcher.
// It must be called before First is used.
func Init(f *fetch.Fetcher) {
	fetch.SetGlobal(f)
}

// First races sources using the default fetcher and the policy for key.
func First[T any](ctx context.Context, key string, sources ...source.Source[T]) (T, bool) {
	return fetch.First(ctx, fetch.DefaultFetcher(), policy.ParseKey(key), sources)
}

// FirstFunc is First for sources written as plain functions.
func FirstFunc[T any](ctx context.Context, key string, fns ...func(context.Context) (T, error)) (T, bool) {
	sources := make([]source.Source[T], len(fns))
	for i, fn := range fns {
		if fn != nil {
			sources[i] = source.Func[T](fn)
		}
	}
	return First(ctx, key, sources...)
}

// FirstWithTimeline is First plus the race timeline.
func FirstWithTimeline[T any](ctx context.Context, key string, sources ...source.Source[T]) (T, observe.Timeline, bool) {
	return fetch.FirstWithTimeline(ctx, fetch.DefaultFetcher(), policy.ParseKey(key), sources)
}
