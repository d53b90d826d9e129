package cache

import (
	"github.com/erp/clinicsync/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// NewIdempotencyStore returns a Redis store when client is set and an
// in-memory store otherwise.
func NewIdempotencyStore(client *redis.Client) shared.IdempotencyStore {
	if client == nil {
		return NewInMemoryIdempotencyStore(0)
	}
	return NewRedisIdempotencyStore(client, DefaultDeliveryKeyPrefix)
}
