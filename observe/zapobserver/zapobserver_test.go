package zapobserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobs "go.uber.org/zap/zaptest/observer"

	"github.com/aponysus/firstof/observe"
	"github.com/aponysus/firstof/policy"
)

func TestObserver_LogsLifecycle(t *testing.T) {
	core, logs := zapobs.New(zapcore.DebugLevel)
	obs := New(zap.New(core))

	ctx := context.Background()
	key := policy.ParseKey("downloads.binary")
	start := time.Unix(100, 0)

	obs.OnStart(ctx, key, policy.DefaultPolicyFor(key), 2)
	obs.OnAttempt(ctx, key, observe.AttemptRecord{Source: 1, StartTime: start, EndTime: start.Add(time.Millisecond), Err: errors.New("disconnected")})
	obs.OnAttempt(ctx, key, observe.AttemptRecord{Source: 0, StartTime: start, EndTime: start.Add(time.Millisecond)})
	obs.OnSettle(ctx, key, observe.SettleRecord{Source: 0, Pass: 3})
	obs.OnSuccess(ctx, key, observe.Timeline{RaceID: "r1", Winner: 0, Start: start, End: start.Add(time.Second)})
	obs.OnFailure(ctx, key, observe.Timeline{RaceID: "r2", FinalErr: errors.New("boom")})

	entries := logs.AllUntimed()
	require.Len(t, entries, 6)

	messages := make([]string, 0, len(entries))
	for _, e := range entries {
		assert.Equal(t, "race", e.LoggerName)
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{
		"race started",
		"attempt failed",
		"attempt succeeded",
		"source settled",
		"race won",
		"race lost",
	}, messages)

	assert.Equal(t, zapcore.InfoLevel, entries[4].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[5].Level)
	assert.Equal(t, "downloads.binary", entries[0].ContextMap()["key"])
	assert.Equal(t, int64(0), entries[4].ContextMap()["winner"])
	assert.Equal(t, "boom", entries[5].ContextMap()["error"])
}

func TestNew_NilLogger(t *testing.T) {
	obs := New(nil)
	obs.OnFailure(context.Background(), policy.PolicyKey{}, observe.Timeline{})
}
