package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/liteforge/pkg/adapters/redis"
	"github.com/aretw0/liteforge/pkg/ports"
)

func newLocker(t *testing.T) (*redis.Locker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return redis.NewLocker(client, "test:", redis.WithPollInterval(20*time.Millisecond)), mr
}

func TestRedisLocker_Contract(t *testing.T) {
	locker, _ := newLocker(t)
	ports.RunDistributedLockerContract(t, locker)
}

func TestRedisLocker_TTL_Expiration(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "/srv/template", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "/srv/template", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// Abandoned locks expire.
	mr.FastForward(2 * time.Second)

	unlock, ok, err := locker.TryLock(ctx, "/srv/template", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, unlock(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	stale, ok, err := locker.TryLock(ctx, "/srv/template", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "/srv/template", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not release the new holder's lock.
	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("test:lock:/srv/template"))
}

func TestRedisLocker_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = redis.Dial(context.Background(), addr)
	assert.Error(t, err)
}
