package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "payment:intent:"

// RedisIntentGuard shares claims between instances through Redis.
type RedisIntentGuard struct {
	client    *redis.Client
	keyPrefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisIntentGuard connects and pings Redis.
func NewRedisIntentGuard(cfg RedisConfig) (*RedisIntentGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisIntentGuardWithClient(client, ""), nil
}

func NewRedisIntentGuardWithClient(client *redis.Client, keyPrefix string) *RedisIntentGuard {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIntentGuard{client: client, keyPrefix: keyPrefix}
}

func (g *RedisIntentGuard) Claim(ctx context.Context, ref string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.keyPrefix+ref, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim intent %s: %w", ref, err)
	}
	return ok, nil
}

func (g *RedisIntentGuard) Release(ctx context.Context, ref string) error {
	if err := g.client.Del(ctx, g.keyPrefix+ref).Err(); err != nil {
		return fmt.Errorf("failed to release intent %s: %w", ref, err)
	}
	return nil
}

func (g *RedisIntentGuard) Close() error {
	return g.client.Close()
}
