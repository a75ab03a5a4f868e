package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDistributedLockerContract runs a suite of tests to verify that a DistributedLocker
// implementation adheres to the defined interface contract.
func RunDistributedLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-test-project-" + time.Now().Format("20060102150405.000000")

	t.Run("TryLock rejects while held", func(t *testing.T) {
		unlock, ok, err := locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "First TryLock should acquire")

		_, ok, err = locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "Second TryLock should be rejected")

		require.NoError(t, unlock(ctx))

		unlock, ok, err = locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "TryLock should succeed after release")
		require.NoError(t, unlock(ctx))
	})

	t.Run("Lock waits for release", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)

		var wg sync.WaitGroup
		acquired := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			second, err := locker.Lock(ctx, key, time.Minute)
			if err != nil {
				return
			}
			close(acquired)
			_ = second(ctx)
		}()

		select {
		case <-acquired:
			t.Fatal("Lock acquired while another holder owns the key")
		case <-time.After(250 * time.Millisecond):
		}

		require.NoError(t, unlock(ctx))
		select {
		case <-acquired:
		case <-time.After(5 * time.Second):
			t.Fatal("Lock was not acquired after release")
		}
		wg.Wait()
	})

	t.Run("Lock honours cancellation", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Minute)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(cctx, key, time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
