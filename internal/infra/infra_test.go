package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiresOnRead(t *testing.T) {
	c := NewCache(24 * time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Set("tickers", 42)
	v, ok := c.Get("tickers")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	now = now.Add(23 * time.Hour)
	_, ok = c.Get("tickers")
	assert.True(t, ok, "entry should survive inside the TTL")

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("tickers")
	assert.False(t, ok, "entry should be stale after the TTL")
}

func TestCacheOverwriteRenewsTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Hour)
	c.SetClock(func() time.Time { return now })

	c.Set("tickers", 1)
	now = now.Add(50 * time.Minute)
	c.Set("tickers", 2)
	now = now.Add(50 * time.Minute)

	v, ok := c.Get("tickers")
	require.True(t, ok, "rewrite should restart the TTL")
	assert.Equal(t, 2, v)
}

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
}

func TestLimiterHonoursContext(t *testing.T) {
	l := NewLimiter(0.001)
	require.NoError(t, l.Wait(context.Background())) // burst token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx))
}
