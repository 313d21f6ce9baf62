package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"
)

// Cache is the keyed TTL store the orchestrators write through. Values are
// stored as JSON; Get unmarshals into dest and reports whether the key was
// present and unexpired. Keys follow the "weather:<locationKey>",
// "aqi:<locationKey>" and "forecast:<locationKey>:<days>" convention.
type Cache interface {
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	Evict(ctx context.Context, key string) error
	EvictPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// InMemoryCache implements Cache with a mutex-guarded map. Expired entries
// are removed on access. Used for development and tests.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]memEntry
}

type memEntry struct {
	raw       []byte
	expiresAt time.Time
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]memEntry)}
}

// Put stores the JSON encoding of value under key with the given TTL.
func (c *InMemoryCache) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = memEntry{raw: raw, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Get unmarshals the entry under key into dest. Returns (false, nil) on a
// miss or when the entry has expired.
func (c *InMemoryCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(entry.raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Evict removes the entry under key, if any.
func (c *InMemoryCache) Evict(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// EvictPattern removes every entry whose key matches the glob pattern
// (e.g. "forecast:london,gb:*").
func (c *InMemoryCache) EvictPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.data, key)
		}
	}
	return nil
}

// Exists reports whether an unexpired entry is stored under key.
func (c *InMemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return time.Now().Before(entry.expiresAt), nil
}
