package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// acquireRetryInterval is the delay between attempts in AcquireWait.
const acquireRetryInterval = 250 * time.Millisecond

// releaseScript deletes the lock key only when it still holds our token, so
// a lock that expired and was re-acquired by another process is never
// released by mistake.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements named, TTL-bounded mutual exclusion on Redis. Overlapping
// audit invocations use it to no-op instead of double-processing; the TTL
// guarantees a crashed holder cannot wedge the audit forever.
type Locker struct {
	client *redis.Client
}

// NewLocker creates a new locker.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire attempts to take the named lock once. Returns the release token
// and true on success, or false when the lock is held elsewhere.
func (l *Locker) Acquire(
	ctx context.Context,
	name string,
	ttl time.Duration,
) (string, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// AcquireWait attempts to take the named lock, retrying until maxWait
// elapses or the context is cancelled.
func (l *Locker) AcquireWait(
	ctx context.Context,
	name string,
	ttl, maxWait time.Duration,
) (string, bool, error) {
	deadline := time.Now().Add(maxWait)

	for {
		token, ok, err := l.Acquire(ctx, name, ttl)
		if err != nil || ok {
			return token, ok, err
		}

		if time.Now().After(deadline) {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}

// Release frees the named lock if it still holds the given token.
func (l *Locker) Release(ctx context.Context, name, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %q: %w", name, err)
	}
	return nil
}

func lockKey(name string) string {
	return "audit:lock:" + name
}
