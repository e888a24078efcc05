package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"bookcal/internal/config"
	"bookcal/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisClient creates a redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context) (*models.Snapshot, error) {
	if s.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := s.client.Get(ctx, SnapshotKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from redis: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// No TTL: the snapshot is the system of record, not a cache.
	if err := s.client.Set(ctx, SnapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in redis: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
