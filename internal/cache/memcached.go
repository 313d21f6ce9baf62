package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedCache implements Cache on memcached. Alternative backend for
// deployments that already run memcached instead of redis.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
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
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Put stores the JSON encoding of value under key with the given TTL.
func (c *MemcachedCache) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600 // fallback 1h if invalid
	}
	return c.client.Set(&memcache.Item{
		Key:        sanitizeKey(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Get unmarshals the entry under key into dest. Returns (false, nil) on a miss.
func (c *MemcachedCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	item, err := c.client.Get(sanitizeKey(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(item.Value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Evict removes the entry under key; a miss is not an error.
func (c *MemcachedCache) Evict(ctx context.Context, key string) error {
	if err := c.client.Delete(sanitizeKey(key)); err != nil && err != memcache.ErrCacheMiss {
		return err
	}
	return nil
}

// EvictPattern is a no-op: memcached cannot enumerate keys, so pattern
// eviction relies on TTL expiry instead.
func (c *MemcachedCache) EvictPattern(ctx context.Context, pattern string) error {
	return nil
}

// Exists reports whether key is present.
func (c *MemcachedCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.Get(sanitizeKey(key))
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// sanitizeKey makes a cache key memcached-safe: keys may not contain spaces.
// Location keys can ("new york,us"), so spaces are replaced.
func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, " ", "_")
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
