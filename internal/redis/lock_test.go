package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestLockerAcquireAndRelease(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.Acquire(ctx, "update_table", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.Acquire(ctx, "update_table", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be acquired twice")

	require.NoError(t, locker.Release(ctx, "update_table", token))

	_, ok, err = locker.Acquire(ctx, "update_table", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released lock must be acquirable again")
}

func TestLockerReleaseRequiresToken(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.Acquire(ctx, "update_table", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale token from a previous holder must not free the lock.
	require.NoError(t, locker.Release(ctx, "update_table", "stale-token"))

	_, ok, err = locker.Acquire(ctx, "update_table", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "update_table", token))
}

func TestLockerExpiredLockIsReacquirable(t *testing.T) {
	t.Parallel()

	mr, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, "update_table", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.Acquire(ctx, "update_table", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerNamesAreIndependent(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, "update_table", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "cascade", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireWaitTimesOut(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx, "update_table", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.AcquireWait(ctx, "update_table", time.Minute, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAcquireWaitRespectsContext(t *testing.T) {
	t.Parallel()

	_, client := newTestClient(t)
	locker := NewLocker(client)

	_, ok, err := locker.Acquire(context.Background(), "update_table", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err = locker.AcquireWait(ctx, "update_table", time.Minute, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
