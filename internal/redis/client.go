package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the shared redis connection used by the API tier: rendered
// profile JSON, rate-limit windows and stats-refresh dedup keys. The
// in-process avatar cache is the first level; this is the cross-instance one.
type Client struct {
	rdb *redis.Client
}

func New(dsn string) (*Client, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.ConnMaxIdleTime = 5 * time.Minute
	opts.ConnMaxLifetime = 30 * time.Minute

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) RDB() *redis.Client {
	return c.rdb
}

func profileKey(avatarID string) string {
	return fmt.Sprintf("avatar:profile:%s", avatarID)
}

func ownerListKey(ownerID string) string {
	return fmt.Sprintf("avatar:owner:%s:list", ownerID)
}

// GetProfile returns the rendered profile JSON for an avatar, or "" on miss.
func (c *Client) GetProfile(ctx context.Context, avatarID string) (string, error) {
	return c.rdb.Get(ctx, profileKey(avatarID)).Result()
}

func (c *Client) SetProfile(ctx context.Context, avatarID string, body []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, profileKey(avatarID), body, ttl).Err()
}

// InvalidateProfile drops the shared profile entry after a committed
// mutation so every API instance refetches.
func (c *Client) InvalidateProfile(ctx context.Context, avatarID string) error {
	return c.rdb.Del(ctx, profileKey(avatarID)).Err()
}

func (c *Client) GetOwnerList(ctx context.Context, ownerID string) (string, error) {
	return c.rdb.Get(ctx, ownerListKey(ownerID)).Result()
}

func (c *Client) SetOwnerList(ctx context.Context, ownerID string, body []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, ownerListKey(ownerID), body, ttl).Err()
}

func (c *Client) InvalidateOwnerList(ctx context.Context, ownerID string) error {
	return c.rdb.Del(ctx, ownerListKey(ownerID)).Err()
}

// MarkRefresh sets a short-lived dedup key for a stats refresh; returns false
// when a refresh for this avatar was already queued inside the window.
func (c *Client) MarkRefresh(ctx context.Context, avatarID string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("stats:refresh:%s", avatarID)
	return c.rdb.SetNX(ctx, key, "1", window).Result()
}

// Rate limiting helper for simple counters.
func (c *Client) Increment(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiration)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
