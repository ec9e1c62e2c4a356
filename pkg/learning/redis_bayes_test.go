package learning

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRedisConfig = &RedisConfig{
	RedisURL:    "redis://localhost:6379",
	Key:         "spamscan:test:model",
	DatabaseNum: 1, // separate database for tests
}

func TestRedisStoreRoundTrip(t *testing.T) {
	if !isRedisAvailable() {
		t.Skip("Redis not available, skipping test")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, testRedisConfig)
	require.NoError(t, err)
	defer store.Close()
	defer store.Delete(ctx)

	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrModelNotFound)

	data, err := trainedModel().MarshalModel()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, data))

	nb, err := LoadClassifier(ctx, store, fields)
	require.NoError(t, err)
	cat, _ := nb.Categorize("free money")
	assert.Equal(t, "spam", cat)
}

func TestNewRedisStoreInvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), &RedisConfig{RedisURL: "not-a-url"})
	assert.ErrorContains(t, err, "invalid Redis URL")
}

func isRedisAvailable() bool {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return client.Ping(ctx).Err() == nil
}
