package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	// AllowFallback lets the service run on in-process stores when Redis
	// cannot be reached. Only safe for a single instance.
	AllowFallback bool
}

// Connect opens and pings a Redis client. It returns a nil client and no
// error when Redis is disabled, or unreachable with AllowFallback set.
func Connect(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-process delivery dedupe and key locks")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !cfg.AllowFallback {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Warn("Redis unavailable, falling back to in-process stores. "+
			"Running more than one instance may process a delivery twice.",
			zap.Error(err),
		)
		return nil, nil
	}

	logger.Info("Connected to Redis", zap.String("addr", client.Options().Addr))
	return client, nil
}
