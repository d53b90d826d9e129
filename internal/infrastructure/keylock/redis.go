package keylock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultKeyPrefix namespaces lock keys in Redis.
	DefaultKeyPrefix = "clinicsync:lock:"
	// DefaultTTL bounds how long a crashed holder can block a key.
	DefaultTTL = 2 * time.Minute

	minRetryDelay = 10 * time.Millisecond
	maxRetryDelay = 250 * time.Millisecond
)

// ErrLockLost is logged when a lock expired before its holder released it.
var ErrLockLost = errors.New("keylock: lock expired before release")

// releaseScript deletes the key only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a KeyLocker backed by SET NX PX on a shared Redis.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix, logger: logger}
}

// Lock polls with capped exponential backoff until the key is acquired or
// ctx is done. The lock expires after ttl if never released.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	delay := minRetryDelay

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}
		if ok {
			telemetry.AddEvent(telemetry.SpanFromContext(ctx), "key_lock_acquired",
				telemetry.SpanAttrLockKey, key)
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			n, err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Int()
			switch {
			case err != nil:
				l.logger.Warn("Failed to release key lock",
					zap.String("key", key),
					zap.Error(err),
				)
			case n == 0:
				l.logger.Warn("Key lock released after expiry",
					zap.String("key", key),
					zap.Duration("ttl", ttl),
					zap.Error(ErrLockLost),
				)
			}
		})
	}, nil
}

var _ reconciliation.KeyLocker = (*RedisLocker)(nil)

// New returns a RedisLocker when client is set and a LocalLocker otherwise.
func New(client *redis.Client, logger *zap.Logger) reconciliation.KeyLocker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(client, DefaultKeyPrefix, logger)
}
