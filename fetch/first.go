package fetch

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
	"github.com/aponysus/firstof/race"
	"github.com/aponysus/firstof/retry"
	"github.com/aponysus/firstof/source"
)

// First races sources under the policy for key and returns the first value
// produced. It reports false when sources is empty or every source failed.
//
// A nil f uses DefaultFetcher. Sources that lose keep running with ctx until
// they finish; cancel ctx to stop them.
func First[T any](ctx context.Context, f *Fetcher, key policy.PolicyKey, sources []source.Source[T]) (T, bool) {
	val, _, ok := run(ctx, f, key, sources)
	return val, ok
}

// FirstWithTimeline is First plus the structured record of the race.
func FirstWithTimeline[T any](ctx context.Context, f *Fetcher, key policy.PolicyKey, sources []source.Source[T]) (T, observe.Timeline, bool) {
	return run(ctx, f, key, sources)
}

func run[T any](ctx context.Context, f *Fetcher, key policy.PolicyKey, sources []source.Source[T]) (T, observe.Timeline, bool) {
	var zero T
	if len(sources) == 0 {
		return zero, observe.Timeline{Key: key, Winner: -1}, false
	}
	for i, s := range sources {
		if s == nil {
			panic("fetch: nil source at index " + strconv.Itoa(i))
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if f == nil {
		f = DefaultFetcher()
	}

	capture, _ := observe.TimelineCaptureFromContext(ctx)

	pol, attrs := f.resolve(ctx, key)
	raceID := f.newRaceID()

	tl := observe.Timeline{
		Key:        key,
		PolicyID:   pol.ID,
		RaceID:     raceID,
		Sources:    len(sources),
		Start:      f.clock(),
		Attributes: attrs,
		Winner:     -1,
	}

	log := f.logger.With(zap.Stringer("key", key), zap.String("race_id", raceID))
	log.Debug("race started",
		zap.Int("sources", len(sources)),
		zap.Int("extra_attempts", pol.Retry.ExtraAttempts),
		zap.Duration("timeout", pol.Race.Timeout),
	)
	f.observer.OnStart(ctx, key, pol, len(sources))

	rec := newRecorder(f.observer, key, f.clock)
	retryer := retry.FromPolicy(pol.Retry,
		retry.WithObserver(rec),
		retry.WithClock(f.clock),
		retry.WithRecoverPanics(f.recoverPanics),
	)

	// Sources run with the caller's context; the race timeout only bounds
	// how long we wait for them.
	base := observe.WithoutTimelineCapture(ctx)
	ops := make([]race.Operation[T], len(sources))
	for i, s := range sources {
		opCtx := observe.WithRaceInfo(base, observe.RaceInfo{Key: key, RaceID: raceID, Source: i})
		wrapped := retry.Wrap(retryer, retry.Operation[T](source.Operation(s)))
		ops[i] = func(context.Context) (T, error) {
			return wrapped(opCtx)
		}
	}

	waitCtx := ctx
	if pol.Race.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, pol.Race.Timeout)
		defer cancel()
	}

	r := race.New(ops, race.WithSettleHook(func(index, pass int, err error) {
		rec.settle(ctx, index, pass, err)
	}))
	out := r.Run(waitCtx)

	tl.End = f.clock()
	tl.Passes = r.Passes()
	rec.fill(&tl)

	if out.OK() {
		tl.Winner = out.Index
		log.Debug("race won",
			zap.Int("winner", out.Index),
			zap.Int("passes", tl.Passes),
			zap.Duration("elapsed", elapsed(tl)),
		)
		f.observer.OnSuccess(ctx, key, tl)
		observe.StoreTimelineCapture(capture, &tl)
		return out.Value, tl, true
	}

	// The error stops here: callers only learn that nothing arrived.
	tl.FinalErr = out.Err
	log.Debug("race lost",
		zap.Int("passes", tl.Passes),
		zap.Duration("elapsed", elapsed(tl)),
		zap.Error(out.Err),
	)
	f.observer.OnFailure(ctx, key, tl)
	observe.StoreTimelineCapture(capture, &tl)
	return zero, tl, false
}

func elapsed(tl observe.Timeline) time.Duration {
	if tl.Start.IsZero() || tl.End.IsZero() {
		return 0
	}
	return tl.End.Sub(tl.Start)
}
