// Package slugcache caches enumerated boat slugs in Redis so repeated
// batch runs skip the search-page walk.
package slugcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the slice of the redis client the cache needs, kept as an
// interface so tests can fake it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Cache struct {
	redis  RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

// entry is the cached value, carrying enough metadata to log where a hit
// came from.
type entry struct {
	Destination string    `json:"destination"`
	MaxPages    int       `json:"max_pages,omitempty"`
	Count       int       `json:"count"`
	CachedAt    time.Time `json:"cached_at"`
	Slugs       []string  `json:"slugs"`
}

func New(redisClient RedisClient, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Cache{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.With("component", "slug_cache"),
	}
}

// Key builds the cache key for one enumeration scope. A bounded walk gets
// its own key so a full walk is never shadowed by a partial one.
func Key(destination string, maxPages int) string {
	dest := destination
	if dest == "" {
		dest = "all"
	}
	if maxPages > 0 {
		return fmt.Sprintf("slugs:%s_mp%d", dest, maxPages)
	}
	return "slugs:" + dest
}

// Load returns the cached slugs for a scope, or nil on a miss. Expiry is
// handled by the key TTL.
func (c *Cache) Load(ctx context.Context, destination string, maxPages int) []string {
	raw, err := c.redis.Get(ctx, Key(destination, maxPages)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("failed to read slug cache", "error", err)
		}
		return nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("failed to decode slug cache", "error", err)
		return nil
	}

	c.logger.Info("slug cache hit",
		"destination", e.Destination,
		"count", e.Count,
		"cached_at", e.CachedAt.Format(time.RFC3339))
	return e.Slugs
}

// Save stores the slugs for a scope with the configured TTL.
func (c *Cache) Save(ctx context.Context, destination string, maxPages int, slugs []string) {
	dest := destination
	if dest == "" {
		dest = "all"
	}
	raw, err := json.Marshal(entry{
		Destination: dest,
		MaxPages:    maxPages,
		Count:       len(slugs),
		CachedAt:    time.Now(),
		Slugs:       slugs,
	})
	if err != nil {
		c.logger.Warn("failed to encode slug cache", "error", err)
		return
	}

	if err := c.redis.Set(ctx, Key(destination, maxPages), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to write slug cache", "error", err)
		return
	}
	c.logger.Info("slug cache saved", "destination", dest, "count", len(slugs))
}

// Invalidate drops the cached slugs for a scope, used by --refresh-cache.
func (c *Cache) Invalidate(ctx context.Context, destination string, maxPages int) {
	if err := c.redis.Del(ctx, Key(destination, maxPages)).Err(); err != nil {
		c.logger.Warn("failed to invalidate slug cache", "error", err)
	}
}
