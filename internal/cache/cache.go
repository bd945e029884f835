// Package cache provides a small Redis-backed cache for read-heavy public
// endpoints. Every method is a no-op on a nil receiver, so the server runs
// unchanged without Redis configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FeedCache caches JSON payloads under versioned keys. Writers bump the
// version instead of scanning for keys to delete, which keeps invalidation
// a single INCR.
type FeedCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// New connects to Redis and returns a cache, or (nil, nil) when url is
// empty. A nil *FeedCache is valid and disables caching.
func New(ctx context.Context, url string, ttl time.Duration, logger *zap.SugaredLogger) (*FeedCache, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &FeedCache{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Close releases the underlying connection.
func (c *FeedCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *FeedCache) versionedKey(ctx context.Context, key string) string {
	ver, err := c.rdb.Get(ctx, "cache_ver").Result()
	if err != nil {
		ver = "0"
	}
	return fmt.Sprintf("ouvidoria:%s:%s", ver, key)
}

// Get unmarshals a cached payload into dest. Returns false on miss or any
// Redis failure; callers always fall through to the database.
func (c *FeedCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, c.versionedKey(ctx, key)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warnw("Cache entry unreadable, dropping", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores a payload under key for the configured TTL. Failures are
// logged and swallowed; the cache is never load-bearing.
func (c *FeedCache) Set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.versionedKey(ctx, key), raw, c.ttl).Err(); err != nil {
		c.logger.Warnw("Cache write failed", "key", key, "error", err)
	}
}

// Invalidate makes all current entries unreachable by bumping the version.
// Stale entries expire on their own TTL.
func (c *FeedCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, "cache_ver").Err(); err != nil {
		c.logger.Warnw("Cache invalidation failed", "error", err)
	}
}
