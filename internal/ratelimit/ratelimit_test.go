package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterLimiter_FirstCallDoesNotWait(t *testing.T) {
	l := NewJitterLimiter(time.Minute, time.Minute)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestJitterLimiter_SpacesCalls(t *testing.T) {
	l := NewJitterLimiter(30*time.Millisecond, 40*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestJitterLimiter_ZeroDelay(t *testing.T) {
	l := NewJitterLimiter(0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestJitterLimiter_ContextCancelled(t *testing.T) {
	l := NewJitterLimiter(time.Minute, time.Minute)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJitterLimiter_InvertedBounds(t *testing.T) {
	l := NewJitterLimiter(2*time.Second, time.Second)
	min, max := l.Delays()
	assert.Equal(t, 2*time.Second, min)
	assert.Equal(t, 2*time.Second, max)
	assert.Equal(t, 2*time.Second, l.calculateDelay())
}

func TestJitterLimiter_DelayWithinBounds(t *testing.T) {
	l := NewJitterLimiter(time.Second, 3*time.Second)
	for i := 0; i < 100; i++ {
		d := l.calculateDelay()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}

func TestAdaptiveLimiter(t *testing.T) {
	t.Run("backs off after repeated errors", func(t *testing.T) {
		a := NewAdaptiveLimiter(time.Second, 2*time.Second)
		a.RecordError()
		a.RecordError()
		min, _ := a.Delays()
		assert.Equal(t, time.Second, min)

		a.RecordError()
		min, max := a.Delays()
		assert.Equal(t, 1500*time.Millisecond, min)
		assert.Equal(t, 3*time.Second, max)
	})

	t.Run("backoff is capped", func(t *testing.T) {
		a := NewAdaptiveLimiter(50*time.Second, 100*time.Second)
		for i := 0; i < 30; i++ {
			a.RecordError()
		}
		min, max := a.Delays()
		assert.Equal(t, time.Minute, min)
		assert.Equal(t, 2*time.Minute, max)
	})

	t.Run("recovers but not below the initial minimum", func(t *testing.T) {
		a := NewAdaptiveLimiter(time.Second, 2*time.Second)
		for i := 0; i < 3; i++ {
			a.RecordError()
		}
		for i := 0; i < 60; i++ {
			a.RecordSuccess()
		}
		min, max := a.Delays()
		assert.Equal(t, time.Second, min)
		assert.GreaterOrEqual(t, max, min)
	})

	t.Run("success resets the error streak", func(t *testing.T) {
		a := NewAdaptiveLimiter(time.Second, 2*time.Second)
		a.RecordError()
		a.RecordError()
		a.RecordSuccess()
		a.RecordError()
		min, _ := a.Delays()
		assert.Equal(t, time.Second, min)
	})
}
