package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache stores opaque values with a TTL. The dashboard caches the station
// directory and individual historic pages through it.
// Get returns (value, true, nil) on hit and (nil, false, nil) on miss or expiry.
// A ttl <= 0 stores without expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Minute

// InMemoryCache implements Cache using a map with TTL-based expiration.
// Expired entries are dropped when read, and Set sweeps the whole map at most
// once per sweepInterval so keys that are never read again do not pile up.
// Safe for concurrent use.
type InMemoryCache struct {
	mu        sync.Mutex
	data      map[string]cacheEntry
	now       func() time.Time
	nextSweep time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Get retrieves the value for key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(c.now()) {
		delete(c.data, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key for ttl. The slice is copied.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := cacheEntry{value: v}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.data[key] = entry
	if now.Before(c.nextSweep) {
		return nil
	}
	c.nextSweep = now.Add(sweepInterval)
	for k, e := range c.data {
		if e.expired(now) {
			delete(c.data, k)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// GetJSON reads key from c and decodes it into v.
func GetJSON(ctx context.Context, c Cache, key string, v interface{}) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
