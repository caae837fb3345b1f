package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "third request in the same instant must be denied")

	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "other keys are independent")
}

func TestMemoryLimiterSweep(t *testing.T) {
	l := NewMemoryLimiter(5, time.Second)
	current := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	_, _ = l.Allow(context.Background(), "a")
	current = current.Add(10 * time.Second)
	_, _ = l.Allow(context.Background(), "b")

	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.visitors, 1)
}

func TestRedisLimiter(t *testing.T) {
	client, mock := redismock.NewClientMock()

	l := NewRedisLimiter(client, "rl:fraud", 1, time.Minute)
	fixed := time.Date(2026, 10, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	key := fmt.Sprintf("rl:fraud:1.2.3.4:%d", fixed.UnixNano()/int64(time.Minute))

	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectTxPipelineExec()

	ok, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectTxPipelineExec()

	ok, err = l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLimiterError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLimiter(client, "rl", 1, time.Minute)

	mock.ExpectTxPipeline()
	mock.ExpectIncr("unexpected-key").SetErr(errors.New("connection refused"))

	_, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
}
