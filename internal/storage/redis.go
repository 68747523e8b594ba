package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
)

// mediaKeyPrefix namespaces media references in a shared redis.
const mediaKeyPrefix = "storyteller:media:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

// Ping checks the connection, used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// RedisRefCache stores generated media references in redis so that every
// companion process shares one narration cache.
type RedisRefCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRefCache wraps the store's client. A zero ttl keeps entries forever.
func NewRedisRefCache(store *RedisStore, ttl time.Duration, logger *zap.Logger) *RedisRefCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRefCache{client: store.client, ttl: ttl, logger: logger.Named("redis_cache")}
}

// Get returns the cached reference. Redis errors count as a miss.
func (c *RedisRefCache) Get(ctx context.Context, key string) (string, bool) {
	ref, err := c.client.Get(ctx, mediaKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return ref, true
}

func (c *RedisRefCache) Put(ctx context.Context, key, ref string) error {
	if err := c.client.Set(ctx, mediaKey(key), ref, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store media reference: %w", err)
	}
	return nil
}

// Invalidate drops a cached reference.
func (c *RedisRefCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, mediaKey(key)).Err()
}

func mediaKey(key string) string {
	return mediaKeyPrefix + key
}
