package safety

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter("bybit", 2, 4)
	rl.now = func() time.Time { return clock }
	rl.lastRefill = clock

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	clock = clock.Add(250 * time.Millisecond)
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	clock = clock.Add(10 * time.Second)
	stats := rl.GetStats()
	assert.Equal(t, "bybit", stats.Name)
	assert.InDelta(t, 2.0, stats.Tokens, 1e-9)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter("off", 1, 0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow())
	}

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter("fast", 1, 200)
	require.True(t, rl.Allow())

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter("slow", 1, 0.001)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)
}
