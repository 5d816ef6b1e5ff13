package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	result    ProfileCacheResult
	expiresAt time.Time
}

// MemoryProfileCache is the in-process ProfileCache used without Redis.
// Expired entries are dropped lazily on read.
type MemoryProfileCache struct {
	mu      sync.Mutex
	prefix  string
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryProfileCache(prefix string) *MemoryProfileCache {
	return &MemoryProfileCache{
		prefix:  prefix,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryProfileCache) BuildKeyByID(profileID string) string {
	return fmt.Sprintf("%s:id:%s", c.prefix, profileID)
}

func (c *MemoryProfileCache) Get(ctx context.Context, key string) (*ProfileCacheResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	result := e.result
	return &result, nil
}

func (c *MemoryProfileCache) Set(ctx context.Context, key string, result *ProfileCacheResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{result: *result}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryProfileCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *MemoryProfileCache) Close() error {
	return nil
}
