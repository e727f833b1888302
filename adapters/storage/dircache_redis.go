package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/frankii91/sharp-web-resizing-images/core"
)

// RedisDirCache shares the directory set between replicas writing to the
// same mounted volume. Membership lives in one Redis set.
type RedisDirCache struct {
	client *redis.Client
	key    string
	group  singleflight.Group
}

// RedisDirCacheConfig configures the Redis connection.
type RedisDirCacheConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // set key; default "sharp:dirs"
}

// NewRedisDirCache connects and pings Redis.
func NewRedisDirCache(ctx context.Context, cfg RedisDirCacheConfig) (*RedisDirCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis dircache: addr is required")
	}
	if cfg.Key == "" {
		cfg.Key = "sharp:dirs"
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis dircache: ping %s: %w", cfg.Addr, err)
	}
	return &RedisDirCache{client: client, key: cfg.Key}, nil
}

// Ensure skips create when the directory is already a set member. Redis
// failures fall back to calling create, which must be idempotent; a
// directory is only recorded after create succeeds. The shared lookup is
// detached from the caller's cancellation so one abandoned caller cannot
// fail the others waiting on the same directory.
func (c *RedisDirCache) Ensure(ctx context.Context, dir string, create func(string) error) error {
	key := filepath.Clean(dir)
	shared := context.WithoutCancel(ctx)
	_, err, _ := c.group.Do(key, func() (interface{}, error) {
		known, err := c.client.SIsMember(shared, c.key, key).Result()
		if err == nil && known {
			return nil, nil
		}
		if err := create(key); err != nil {
			return nil, err
		}
		if err == nil {
			// Best effort: an unrecorded directory is only created again.
			_ = c.client.SAdd(shared, c.key, key).Err()
		}
		return nil, nil
	})
	return err
}

// Close releases the Redis connection.
func (c *RedisDirCache) Close() error { return c.client.Close() }

var _ core.DirectoryCache = (*RedisDirCache)(nil)
