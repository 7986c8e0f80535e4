// Package cache is the explicitly owned TTL cache shared by the orchestrator,
// the image resolver and the background jobs.
//
// Values are stored as JSON snapshots: every Get decodes a fresh copy, so a
// response handed to a caller never changes when the cached cell is later
// replaced by background enrichment.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const lockStripes = 64

// Mirror is an optional second tier shared between replicas
type Mirror interface {
	Get(ctx context.Context, key string) (value []byte, ttl time.Duration, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache is a string-keyed TTL store with copy-on-return reads
type Cache struct {
	local      *gocache.Cache
	mirror     Mirror
	defaultTTL time.Duration
	locks      [lockStripes]sync.Mutex
}

// New creates a cache with the given default TTL. The go-cache janitor is
// disabled; expired entries are reaped by Sweep, which the sweep job calls.
func New(defaultTTL time.Duration, mirror Mirror) *Cache {
	return &Cache{
		local:      gocache.New(defaultTTL, 0),
		mirror:     mirror,
		defaultTTL: defaultTTL,
	}
}

// DefaultTTL returns the TTL applied when Set is called with ttl <= 0
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get decodes the live entry for key into dst. It reports false when the key
// was never set or has expired. Expired entries are left for Sweep.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	raw, found := c.local.Get(key)
	if !found {
		raw, found = c.fromMirror(ctx, key)
		if !found {
			return false
		}
	}

	data, ok := raw.([]byte)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("⚠️  [CACHE] Dropping undecodable entry %s: %v", key, err)
		return false
	}
	return true
}

// Set stores a snapshot of value under key. A ttl <= 0 uses the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	c.store(ctx, key, data, ttl)
	return nil
}

// Mutate decodes the live entry into dst, applies fn and writes the result
// back with the entry's remaining TTL. Absent or expired keys are skipped and
// Mutate reports false. fn returning false leaves the entry untouched.
func (c *Cache) Mutate(ctx context.Context, key string, dst any, fn func() bool) (bool, error) {
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	raw, expiresAt, found := c.local.GetWithExpiration(key)
	if !found {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, nil
	}

	ttl := c.defaultTTL
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			return false, nil
		}
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	if !fn() {
		return false, nil
	}

	updated, err := json.Marshal(dst)
	if err != nil {
		return false, fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	c.store(ctx, key, updated, ttl)
	return true, nil
}

// Sweep removes every expired entry from the local tier
func (c *Cache) Sweep() {
	c.local.DeleteExpired()
}

// Len returns the number of entries in the local tier, expired ones included
func (c *Cache) Len() int {
	return c.local.ItemCount()
}

func (c *Cache) store(ctx context.Context, key string, data []byte, ttl time.Duration) {
	c.local.Set(key, data, ttl)
	if c.mirror == nil {
		return
	}
	if err := c.mirror.Set(ctx, key, data, ttl); err != nil {
		log.Printf("⚠️  [CACHE] Mirror write failed for %s: %v", key, err)
	}
}

func (c *Cache) fromMirror(ctx context.Context, key string) (any, bool) {
	if c.mirror == nil {
		return nil, false
	}
	data, ttl, found, err := c.mirror.Get(ctx, key)
	if err != nil {
		log.Printf("⚠️  [CACHE] Mirror read failed for %s: %v", key, err)
		return nil, false
	}
	if !found || ttl <= 0 {
		return nil, false
	}
	c.local.Set(key, data, ttl)
	return data, true
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.locks[h.Sum32()%lockStripes]
}
