package synclock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Locker{Rdb: rdb, TTL: time.Minute}, mr
}

func TestAcquire_ExclusivePerAccount(t *testing.T) {
	l, _ := setupLocker(t)
	ctx := context.Background()
	acct := uuid.New()

	lease, err := l.Acquire(ctx, acct)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, acct)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	again, err := l.Acquire(ctx, acct)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRelease_DoesNotDropForeignLease(t *testing.T) {
	l, mr := setupLocker(t)
	ctx := context.Background()
	acct := uuid.New()

	stale, err := l.Acquire(ctx, acct)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	current, err := l.Acquire(ctx, acct)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists(key(acct)))
	assert.ErrorIs(t, stale.Extend(ctx), ErrLocked)

	require.NoError(t, current.Extend(ctx))
	require.NoError(t, current.Release(ctx))
	assert.False(t, mr.Exists(key(acct)))
}

func TestOpen_RejectsBadURL(t *testing.T) {
	_, err := Open("not-a-url")
	assert.Error(t, err)

	rdb, err := Open("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, rdb.Close())
}
