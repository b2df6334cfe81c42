package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/domestiq/bookingcore/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client    redis.Cmdable
	unreadTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, unreadTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		unreadTTL,
	)
}

func NewRedisCacheWithClient(client redis.Cmdable, unreadTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, unreadTTL: unreadTTL}
}

func (c *RedisCache) Close() error {
	if closer, ok := c.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ClaimWebhookEvent returns true the first time it sees key within ttl.
func (c *RedisCache) ClaimWebhookEvent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, webhookKey(key), "1", ttl).Result()
}

// ReleaseWebhookEvent forgets key so a redelivery is processed again.
func (c *RedisCache) ReleaseWebhookEvent(ctx context.Context, key string) error {
	return c.client.Del(ctx, webhookKey(key)).Err()
}

// GetUnreadCount returns ok=false on a cache miss.
func (c *RedisCache) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	n, err := c.client.Get(ctx, unreadKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

func (c *RedisCache) SetUnreadCount(ctx context.Context, userID uuid.UUID, n int64) error {
	return c.client.Set(ctx, unreadKey(userID), n, c.unreadTTL).Err()
}

func (c *RedisCache) InvalidateUnreadCount(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = unreadKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func webhookKey(key string) string {
	return fmt.Sprintf("webhook:paystack:%s", key)
}

func unreadKey(userID uuid.UUID) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}
