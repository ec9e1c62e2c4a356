package learning

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrModelNotFound is returned when the store holds no blob
var ErrModelNotFound = errors.New("model not found")

// RedisConfig holds Redis model store configuration
type RedisConfig struct {
	RedisURL    string `json:"redis_url" yaml:"redis_url"`
	Key         string `json:"key" yaml:"key"`
	DatabaseNum int    `json:"database_num" yaml:"database_num"`
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		RedisURL:    "redis://localhost:6379",
		Key:         "spamscan:model",
		DatabaseNum: 0,
	}
}

// RedisStore keeps the model blob under a single Redis key
type RedisStore struct {
	client *redis.Client
	config *RedisConfig
}

// NewRedisStore connects to Redis
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.Key == "" {
		config.Key = DefaultRedisConfig().Key
	}

	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opt.DB = config.DatabaseNum
	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, config: config}, nil
}

// Load reads the blob
func (rs *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := rs.client.Get(ctx, rs.config.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w at key %s", ErrModelNotFound, rs.config.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model from redis: %w", err)
	}
	return data, nil
}

// Save writes the blob
func (rs *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := rs.client.Set(ctx, rs.config.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write model to redis: %w", err)
	}
	return nil
}

// Delete removes the blob
func (rs *RedisStore) Delete(ctx context.Context) error {
	return rs.client.Del(ctx, rs.config.Key).Err()
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
