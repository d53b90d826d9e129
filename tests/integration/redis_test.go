package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/clinicsync/internal/infrastructure/cache"
	"github.com/erp/clinicsync/internal/infrastructure/keylock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisLocker_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := NewTestRedis(t)
	ctx := context.Background()

	t.Run("serializes holders of one key", func(t *testing.T) {
		// two lockers model two service instances
		lockers := []*keylock.RedisLocker{
			keylock.NewRedisLocker(client, "", zap.NewNop()),
			keylock.NewRedisLocker(client, "", zap.NewNop()),
		}

		var (
			inside  atomic.Int32
			overlap atomic.Bool
			wg      sync.WaitGroup
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func(l *keylock.RedisLocker) {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "visit-serial", 5*time.Second)
				if !assert.NoError(t, err) {
					return
				}
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(20 * time.Millisecond)
				inside.Add(-1)
				unlock()
			}(lockers[i%2])
		}
		wg.Wait()
		assert.False(t, overlap.Load())
	})

	t.Run("different keys do not block", func(t *testing.T) {
		l := keylock.NewRedisLocker(client, "", zap.NewNop())
		unlockA, err := l.Lock(ctx, "visit-a", 5*time.Second)
		require.NoError(t, err)
		defer unlockA()

		lockCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		unlockB, err := l.Lock(lockCtx, "visit-b", 5*time.Second)
		require.NoError(t, err)
		unlockB()
	})

	t.Run("waiter gives up when its context ends", func(t *testing.T) {
		l := keylock.NewRedisLocker(client, "", zap.NewNop())
		unlock, err := l.Lock(ctx, "visit-held", 5*time.Second)
		require.NoError(t, err)
		defer unlock()

		lockCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		_, err = l.Lock(lockCtx, "visit-held", 5*time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("expired lock can be taken over", func(t *testing.T) {
		l := keylock.NewRedisLocker(client, "", zap.NewNop())
		stale, err := l.Lock(ctx, "visit-expired", 100*time.Millisecond)
		require.NoError(t, err)

		lockCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		unlock, err := l.Lock(lockCtx, "visit-expired", 5*time.Second)
		require.NoError(t, err)

		// releasing the stale token must not free the new holder
		stale()
		exists, err := client.Exists(ctx, keylock.DefaultKeyPrefix+"visit-expired").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
		unlock()
	})
}

func TestRedisIdempotencyStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := NewTestRedis(t)
	store := cache.NewIdempotencyStore(client)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "delivery-1")
	require.NoError(t, err)
	assert.False(t, processed)

	first, err := store.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "delivery-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	processed, err = store.IsProcessed(ctx, "delivery-1")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = store.MarkProcessed(ctx, "delivery-short", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		ok, err := store.IsProcessed(ctx, "delivery-short")
		return err == nil && !ok
	}, 2*time.Second, 50*time.Millisecond)
}
