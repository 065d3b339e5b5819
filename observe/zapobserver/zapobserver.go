// Package zapobserver traces race lifecycle events through a zap logger.
//
// Per-attempt and per-settle events are logged at debug level, a won race at
// info and a lost race at warn.
package zapobserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

// Observer implements observe.Observer on top of a *zap.Logger.
type Observer struct {
	logger *zap.Logger
}

var _ observe.Observer = (*Observer)(nil)

// New returns an Observer writing to logger. A nil logger discards everything.
func New(logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{logger: logger.Named("race")}
}

func (o *Observer) OnStart(_ context.Context, key policy.PolicyKey, pol policy.EffectivePolicy, sources int) {
	o.logger.Debug("race started",
		zap.Stringer("key", key),
		zap.String("policy_id", pol.ID),
		zap.Int("sources", sources),
		zap.Int("extra_attempts", pol.Retry.ExtraAttempts),
	)
}

func (o *Observer) OnAttempt(_ context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	fields := []zap.Field{
		zap.Stringer("key", key),
		zap.Int("source", rec.Source),
		zap.Int("attempt", rec.Attempt),
		zap.Duration("elapsed", rec.EndTime.Sub(rec.StartTime)),
	}
	if rec.Backoff > 0 {
		fields = append(fields, zap.Duration("backoff", rec.Backoff))
	}
	if rec.Err != nil {
		fields = append(fields, zap.Error(rec.Err), zap.Bool("panicked", rec.Panicked))
		o.logger.Debug("attempt failed", fields...)
		return
	}
	o.logger.Debug("attempt succeeded", fields...)
}

func (o *Observer) OnSettle(_ context.Context, key policy.PolicyKey, rec observe.SettleRecord) {
	o.logger.Debug("source settled",
		zap.Stringer("key", key),
		zap.Int("source", rec.Source),
		zap.Int("pass", rec.Pass),
		zap.Bool("ok", rec.Err == nil),
		zap.NamedError("error", rec.Err),
	)
}

func (o *Observer) OnSuccess(_ context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.logger.Info("race won",
		zap.Stringer("key", key),
		zap.String("race_id", tl.RaceID),
		zap.Int("winner", tl.Winner),
		zap.Int("passes", tl.Passes),
		zap.Int("attempts", len(tl.Attempts)),
		zap.Duration("elapsed", tl.End.Sub(tl.Start)),
	)
}

func (o *Observer) OnFailure(_ context.Context, key policy.PolicyKey, tl observe.Timeline) {
	o.logger.Warn("race lost",
		zap.Stringer("key", key),
		zap.String("race_id", tl.RaceID),
		zap.Int("sources", tl.Sources),
		zap.Int("passes", tl.Passes),
		zap.Int("attempts", len(tl.Attempts)),
		zap.Duration("elapsed", tl.End.Sub(tl.Start)),
		zap.Error(tl.FinalErr),
	)
}
