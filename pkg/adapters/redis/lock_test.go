package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/dsflow/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "run-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:run-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:run-1"))
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	first := redis.NewLocker(client, "test:")
	second := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := first.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = second.Lock(short, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))

	unlock2, err := second.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)
	assert.True(t, mr.Exists("test:lock:shared"))
}

func TestRedisLocker_UnlockDoesNotStealForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "run-1", time.Second)
	require.NoError(t, err)

	// Lock expired and was taken by someone else.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:run-1", "other-owner"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("test:lock:run-1")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", got)
}
