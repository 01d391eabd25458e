// Package cache provides the keyed TTL cache used by enrichment and the
// relevance oracle.
//
// Reads go through three tiers: a sharded in-process map, an optional
// shared Redis tier, and the persistent store (Postgres) as the
// authoritative tier that survives restarts. Writes populate all
// configured tiers. A failing tier degrades to a miss and is logged; it
// never blocks the pipeline.
package cache

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache kinds. TTL defaults are configured per kind by the caller.
const (
	KindEnrichment = "enrichment"
	KindOracle     = "oracle"
)

const shardCount = 16

// Store is the persistent tier.
type Store interface {
	GetEntry(ctx context.Context, kind, key string) ([]byte, bool, error)
	SetEntry(ctx context.Context, kind, key string, value []byte, expiresAt time.Time) error
	DeleteExpiredEntries(ctx context.Context, now time.Time) (int64, error)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// Cache is safe for concurrent use.
type Cache struct {
	store  Store
	rdb    *redis.Client // nil disables the Redis tier
	shards [shardCount]*shard
	logger *zerolog.Logger
}

func New(store Store, rdb *redis.Client, logger *zerolog.Logger) *Cache {
	c := &Cache{store: store, rdb: rdb, logger: logger}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]memoryEntry)}
	}

	return c
}

// Get returns the cached value for (kind, key), or ok=false when absent
// or expired in every tier.
func (c *Cache) Get(ctx context.Context, kind, key string) ([]byte, bool) {
	full := kind + ":" + key
	now := time.Now()

	if value, ok := c.getMemory(full, now); ok {
		return value, true
	}

	if value, ok := c.getRedis(ctx, full); ok {
		return value, true
	}

	value, ok, err := c.store.GetEntry(ctx, kind, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Msg("cache store read failed, degrading to miss")
		return nil, false
	}

	if !ok {
		return nil, false
	}

	return value, true
}

// Set writes the value to every configured tier with the given TTL.
func (c *Cache) Set(ctx context.Context, kind, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	full := kind + ":" + key
	expiresAt := time.Now().Add(ttl)

	c.setMemory(full, value, expiresAt)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, full, value, ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("kind", kind).Msg("cache redis write failed")
		}
	}

	if err := c.store.SetEntry(ctx, kind, key, value, expiresAt); err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Msg("cache store write failed")
	}
}

// Sweep removes expired entries from the in-process tier and the
// persistent store. Redis expires its own keys.
func (c *Cache) Sweep(ctx context.Context) {
	now := time.Now()

	for _, s := range c.shards {
		s.mu.Lock()
		for key, entry := range s.entries {
			if now.After(entry.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}

	removed, err := c.store.DeleteExpiredEntries(ctx, now)
	if err != nil {
		c.logger.Warn().Err(err).Msg("cache store sweep failed")
		return
	}

	if removed > 0 {
		c.logger.Debug().Int64("removed", removed).Msg("swept expired cache entries")
	}
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return c.shards[h.Sum32()%shardCount]
}

func (c *Cache) getMemory(key string, now time.Time) ([]byte, bool) {
	s := c.shardFor(key)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || now.After(entry.expiresAt) {
		return nil, false
	}

	return entry.value, true
}

func (c *Cache) setMemory(key string, value []byte, expiresAt time.Time) {
	s := c.shardFor(key)

	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
}

func (c *Cache) getRedis(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb == nil {
		return nil, false
	}

	value, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("cache redis read failed, degrading to miss")
		}

		return nil, false
	}

	return value, true
}
