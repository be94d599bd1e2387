package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultMedianTTL bounds how stale the cached traffic median may be within
// one audit run. Postgres remains the source of truth.
const DefaultMedianTTL = 60 * time.Second

// MedianCache is a short-TTL cache for the per-snapshot traffic median,
// avoiding repeated storage round-trips while the final classification pass
// walks the snapshot.
type MedianCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMedianCache creates a median cache with the given TTL (DefaultMedianTTL
// when zero).
func NewMedianCache(client *redis.Client, ttl time.Duration) *MedianCache {
	if ttl <= 0 {
		ttl = DefaultMedianTTL
	}
	return &MedianCache{client: client, ttl: ttl}
}

// Get returns the cached median for a snapshot. The second return value is
// false on a cache miss.
func (c *MedianCache) Get(ctx context.Context, snapshotID int64) (float64, bool, error) {
	value, err := c.client.Get(ctx, medianKey(snapshotID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cached median: %w", err)
	}

	median, parseErr := strconv.ParseFloat(value, 64)
	if parseErr != nil {
		return 0, false, fmt.Errorf("corrupt cached median %q: %w", value, parseErr)
	}

	return median, true, nil
}

// Set caches the median for a snapshot.
func (c *MedianCache) Set(ctx context.Context, snapshotID int64, median float64) error {
	value := strconv.FormatFloat(median, 'f', -1, 64)
	if err := c.client.Set(ctx, medianKey(snapshotID), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache median: %w", err)
	}
	return nil
}

// Invalidate drops the cached median for a snapshot.
func (c *MedianCache) Invalidate(ctx context.Context, snapshotID int64) error {
	if err := c.client.Del(ctx, medianKey(snapshotID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached median: %w", err)
	}
	return nil
}

func medianKey(snapshotID int64) string {
	return "audit:median:" + strconv.FormatInt(snapshotID, 10)
}

// pauseKey stores the audit-level pause reason.
const pauseKey = "audit:paused"

// PauseState is the audit-level pause flag, distinct from per-item errors:
// while set, the entire update loop is suppressed.
type PauseState struct {
	client *redis.Client
}

// NewPauseState creates a pause flag handle.
func NewPauseState(client *redis.Client) *PauseState {
	return &PauseState{client: client}
}

// Pause suppresses the audit loop with a human-readable reason.
func (p *PauseState) Pause(ctx context.Context, reason string) error {
	if err := p.client.Set(ctx, pauseKey, reason, 0).Err(); err != nil {
		return fmt.Errorf("failed to set pause flag: %w", err)
	}
	return nil
}

// Resume clears the pause flag.
func (p *PauseState) Resume(ctx context.Context) error {
	if err := p.client.Del(ctx, pauseKey).Err(); err != nil {
		return fmt.Errorf("failed to clear pause flag: %w", err)
	}
	return nil
}

// Paused reports whether the audit is paused and, if so, why.
func (p *PauseState) Paused(ctx context.Context) (string, bool, error) {
	reason, err := p.client.Get(ctx, pauseKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read pause flag: %w", err)
	}
	return reason, true, nil
}
