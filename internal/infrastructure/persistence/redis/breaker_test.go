package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

type flakyCounter struct {
	calls int
	err   error
}

func (f *flakyCounter) Increment(_ context.Context, _ string, window time.Duration) (int64, time.Duration, error) {
	f.calls++
	if f.err != nil {
		return 0, 0, f.err
	}
	return int64(f.calls), window, nil
}

func TestBreakerCounter_PassesThrough(t *testing.T) {
	next := &flakyCounter{}
	b := NewBreakerCounter(next, DefaultBreakerConfig(), logger.Nop())

	count, ttl, err := b.Increment(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, ttl)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerCounter_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &flakyCounter{err: errors.New("connection refused")}
	b := NewBreakerCounter(next, BreakerConfig{ConsecutiveFailures: 3, Timeout: time.Hour}, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := b.Increment(ctx, "k", time.Minute)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, _, err := b.Increment(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, "open", b.State())
}

func TestBreakerCounter_LimiterFailsOpenWhileTripped(t *testing.T) {
	next := &flakyCounter{err: errors.New("i/o timeout")}
	b := NewBreakerCounter(next, BreakerConfig{ConsecutiveFailures: 1, Timeout: time.Hour}, logger.Nop())
	l := NewWriteLimiter(b, 2, time.Minute)

	for i := 0; i < 4; i++ {
		d, err := l.Allow(context.Background(), "learner-1")
		require.Error(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, 1, next.calls)
}
