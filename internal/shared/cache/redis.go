package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uniedit/album/internal/infra/config"
)

// NewRedisClient connects to Redis for session and sign-in state storage.
// It returns (nil, nil) when no address is configured.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}

	return client, nil
}

// Close closes the Redis client. A nil client is ignored.
func Close(client redis.UniversalClient) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
