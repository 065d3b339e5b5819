package observe

import (
	"context"

	"github.com/aponysus/firstof/policy"
)

type raceInfoKey struct{}
type attemptInfoKey struct{}

// RaceInfo identifies the race and source an operation belongs to.
type RaceInfo struct {
	Key    policy.PolicyKey
	RaceID string
	Source int
}

// WithRaceInfo returns a context derived from ctx that carries info.
func WithRaceInfo(ctx context.Context, info RaceInfo) context.Context {
	return context.WithValue(ctx, raceInfoKey{}, info)
}

// RaceFromContext returns the RaceInfo from ctx, if present.
func RaceFromContext(ctx context.Context) (RaceInfo, bool) {
	if ctx == nil {
		return RaceInfo{}, false
	}
	info, ok := ctx.Value(raceInfoKey{}).(RaceInfo)
	return info, ok
}

// AttemptInfo is per-attempt metadata attached to the attempt context.
type AttemptInfo struct {
	Source  int
	Attempt int
	RaceID  string
}

// WithAttemptInfo returns a context derived from ctx that carries info.
func WithAttemptInfo(ctx context.Context, info AttemptInfo) context.Context {
	return context.WithValue(ctx, attemptInfoKey{}, info)
}

// AttemptFromContext returns the AttemptInfo from ctx, if present.
func AttemptFromContext(ctx context.Context) (AttemptInfo, bool) {
	if ctx == nil {
		return AttemptInfo{}, false
	}
	info, ok := ctx.Value(attemptInfoKey{}).(AttemptInfo)
	return info, ok
}
