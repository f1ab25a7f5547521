package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/config"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	GenerateKey(operation, key string) string
	Close() error
}

type redisCache struct {
	client    *goredis.Client
	keyPrefix string
}

func NewRedisCache(cfg config.RedisConfig) (Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}

	return &redisCache{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *redisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *redisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.keyPrefix, operation, key)
}

func (r *redisCache) Close() error {
	return r.client.Close()
}

// noopCache is used when no Redis address is configured. Locks always
// succeed and nothing is remembered, so callers fall back to the store.
type noopCache struct {
	keyPrefix string
}

func NewNoopCache(keyPrefix string) Cache {
	return noopCache{keyPrefix: keyPrefix}
}

func (noopCache) Get(context.Context, string) (string, error) { return "", nil }

func (noopCache) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return true, nil
}

func (noopCache) Del(context.Context, string) error { return nil }

func (n noopCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", n.keyPrefix, operation, key)
}

func (noopCache) Close() error { return nil }
