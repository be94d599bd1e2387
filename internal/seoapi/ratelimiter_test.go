package seoapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newFrozenLimiter() (*RateLimiter, *time.Time) {
	limiter := NewRateLimiter()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	limiter.SetNowFunc(func() time.Time { return now })
	return limiter, &now
}

func TestRateLimiterAllowsUnconfiguredAPI(t *testing.T) {
	t.Parallel()

	limiter, _ := newFrozenLimiter()
	assert.True(t, limiter.Allow(APIBacklinks))
	assert.Zero(t, limiter.WaitTime(APIBacklinks))
}

func TestRateLimiterPauseBlocksAndExpires(t *testing.T) {
	t.Parallel()

	limiter, now := newFrozenLimiter()
	limiter.PauseFor(APIBacklinks, 30*time.Second, false)

	assert.False(t, limiter.Allow(APIBacklinks))
	assert.Equal(t, 30*time.Second, limiter.WaitTime(APIBacklinks))

	*now = now.Add(31 * time.Second)
	assert.True(t, limiter.Allow(APIBacklinks))
	assert.Zero(t, limiter.WaitTime(APIBacklinks))
}

func TestRateLimiterSharedPausePropagates(t *testing.T) {
	t.Parallel()

	limiter, _ := newFrozenLimiter()
	limiter.PauseFor(APIAnalytics, time.Minute, true)

	assert.False(t, limiter.Allow(APIAnalytics))
	assert.False(t, limiter.Allow(APISearchConsole), "shared quota pause must cover the sibling")
	assert.True(t, limiter.Allow(APIBacklinks), "unrelated APIs stay usable")
}

func TestRateLimiterUnsharedPauseStaysLocal(t *testing.T) {
	t.Parallel()

	limiter, _ := newFrozenLimiter()
	limiter.PauseFor(APIAnalytics, time.Minute, false)

	assert.False(t, limiter.Allow(APIAnalytics))
	assert.True(t, limiter.Allow(APISearchConsole))
}

func TestRateLimiterPauseNeverShortens(t *testing.T) {
	t.Parallel()

	limiter, _ := newFrozenLimiter()
	limiter.PauseFor(APIBacklinks, time.Minute, false)
	limiter.PauseFor(APIBacklinks, time.Second, false)

	assert.Equal(t, time.Minute, limiter.WaitTime(APIBacklinks))
}

func TestRateLimiterConfiguredLimit(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	limiter.SetLimit(APIKeywords, 1, 2)

	assert.True(t, limiter.Allow(APIKeywords))
	assert.True(t, limiter.Allow(APIKeywords))
	assert.False(t, limiter.Allow(APIKeywords), "burst of 2 exhausted")
}
