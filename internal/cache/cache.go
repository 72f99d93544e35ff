// Package cache keeps computed analytics results in Redis.  A nil *Cache is
// valid and behaves as an always-missing cache, so callers never need to
// check whether caching is configured.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/repairdesk/internal/config"
	"github.com/iliyamo/repairdesk/internal/logger"
)

// Cache stores JSON-encoded values under a generation counter.  Invalidate
// bumps the generation so every earlier entry becomes unreachable and ages
// out through its TTL.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// New returns a Cache, or nil when caching is disabled or rdb is nil.
func New(rdb *redis.Client, cfg config.CacheConfig) *Cache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, prefix: cfg.Prefix, ttl: ttl, log: logger.WithComponent("cache")}
}

func (c *Cache) genKey() string { return c.prefix + ":gen" }

func (c *Cache) generation(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, c.genKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// key hashes name into the current generation namespace.
func (c *Cache) key(gen int64, name string) string {
	sum := sha1.Sum([]byte(name))
	return fmt.Sprintf("%s:%d:%x", c.prefix, gen, sum[:])
}

// Get decodes the entry for name into dst.  It reports false on a miss or
// any Redis or decoding error.
func (c *Cache) Get(ctx context.Context, name string, dst any) bool {
	if c == nil {
		return false
	}
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("cache generation lookup failed", "error", err)
		return false
	}
	b, err := c.rdb.Get(ctx, c.key(gen, name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", "key", name, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.log.Warn("cache entry undecodable", "key", name, "error", err)
		return false
	}
	return true
}

// Set stores v under name for the configured TTL.  Failures are logged.
func (c *Cache) Set(ctx context.Context, name string, v any) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", name, "error", err)
		return
	}
	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("cache generation lookup failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key(gen, name), b, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", name, "error", err)
	}
}

// Invalidate drops every cached entry.  It is called after each write to
// the request store.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, c.genKey()).Err(); err != nil {
		c.log.Warn("cache invalidate failed", "error", err)
	}
}
