package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const (
	keyPrefix = "wldash:"
	maxKeyLen = 250
	// memcached reads larger expirations as unix timestamps.
	maxRelativeExpiry = 30 * 24 * time.Hour
)

// memcacheClient is the part of *memcache.Client the cache uses.
type memcacheClient interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Ping() error
	Close() error
}

// MemcachedCache implements Cache on memcached, for deployments running more
// than one dashboard replica.
type MemcachedCache struct {
	client memcacheClient
}

// NewMemcachedCache connects to addrs, a comma-separated host:port list.
// Zero timeout or maxIdleConns keep the gomemcache defaults.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		return nil, fmt.Errorf("memcached: no server address in %q", addrs)
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key namespaces k. Station names can contain spaces and historic keys can
// grow long, so keys memcached would reject are hashed.
func key(k string) string {
	full := keyPrefix + k
	if len(full) <= maxKeyLen && !strings.ContainsAny(full, " \t\r\n") {
		return full
	}
	sum := sha1.Sum([]byte(k))
	return keyPrefix + "h:" + hex.EncodeToString(sum[:])
}

// expiry converts ttl to memcached seconds. ttl <= 0 stores without expiry.
func expiry(ttl time.Duration) int32 {
	switch {
	case ttl <= 0:
		return 0
	case ttl > maxRelativeExpiry:
		ttl = maxRelativeExpiry
	case ttl < time.Second:
		ttl = time.Second
	}
	return int32(ttl / time.Second)
}

func (c *MemcachedCache) Get(ctx context.Context, k string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	item, err := c.client.Get(key(k))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcached get %s: %w", k, err)
	}
	return item.Value, true, nil
}

func (c *MemcachedCache) Set(ctx context.Context, k string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.client.Set(&memcache.Item{Key: key(k), Value: value, Expiration: expiry(ttl)})
	if err != nil {
		return fmt.Errorf("memcached set %s: %w", k, err)
	}
	return nil
}

// Ping reports whether every server answers. Used by /health.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close drops idle connections.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
