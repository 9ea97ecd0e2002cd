// Package cache is a best-effort expiring key/value cache. No failure in here
// ever reaches a caller: broken storage or bad payloads read as a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/clock"
)

// DefaultPrefix namespaces cache keys in a shared store.
const DefaultPrefix = "ticketdesk_cache_"

type entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt int64           `json:"stored_at"`
	TTL      int64           `json:"ttl"`
}

// Cache stores JSON-encoded values with a per-entry TTL.
type Cache struct {
	store  Store
	prefix string
	clock  clock.Clock
	logger *zap.Logger
}

// Options configures a Cache.
type Options struct {
	Prefix string
	Clock  clock.Clock
	Logger *zap.Logger
}

// New wraps store.
func New(store Store, opts Options) *Cache {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{store: store, prefix: opts.Prefix, clock: opts.Clock, logger: opts.Logger}
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	payload, err := json.Marshal(entry{
		Value:    raw,
		StoredAt: c.clock.Now().UnixMilli(),
		TTL:      ttl.Milliseconds(),
	})
	if err != nil {
		c.logger.Debug("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, c.prefix+key, payload, ttl); err != nil {
		c.logger.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Get decodes the entry under key into dst. Expired entries are removed and
// reported as absent.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	e, ok := c.load(ctx, key)
	if !ok {
		return false
	}
	if dst == nil {
		return true
	}
	if err := json.Unmarshal(e.Value, dst); err != nil {
		c.logger.Debug("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Has reports whether a live entry exists under key.
func (c *Cache) Has(ctx context.Context, key string) bool {
	_, ok := c.load(ctx, key)
	return ok
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, c.prefix+key); err != nil {
		c.logger.Debug("cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes every entry under this cache's prefix.
func (c *Cache) Clear(ctx context.Context) {
	c.InvalidateByPattern(ctx, "")
}

// InvalidateByPattern removes every entry whose unprefixed key contains pattern.
// It returns the number of keys removed.
func (c *Cache) InvalidateByPattern(ctx context.Context, pattern string) int {
	keys, err := c.store.Keys(ctx, c.prefix)
	if err != nil {
		c.logger.Debug("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	var doomed []string
	for _, k := range keys {
		if strings.Contains(strings.TrimPrefix(k, c.prefix), pattern) {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) == 0 {
		return 0
	}
	if err := c.store.Delete(ctx, doomed...); err != nil {
		c.logger.Debug("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}
	return len(doomed)
}

func (c *Cache) load(ctx context.Context, key string) (entry, bool) {
	raw, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Debug("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Debug("cache entry corrupt", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return entry{}, false
	}
	if c.clock.Now().UnixMilli()-e.StoredAt > e.TTL {
		c.Delete(ctx, key)
		return entry{}, false
	}
	return e, true
}
