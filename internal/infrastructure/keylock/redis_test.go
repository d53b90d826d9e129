package keylock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_UnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client, "", nil)
	assert.Equal(t, DefaultKeyPrefix, locker.keyPrefix)

	_, err := locker.Lock(context.Background(), "visit-1", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to acquire lock "visit-1"`)
}

func TestRedisLocker_CancelledContext(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRedisLocker(client, "", nil).Lock(ctx, "visit-1", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
