package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryAvatarCache is the single process fallback when Redis is not configured.
type MemoryAvatarCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]AvatarEntry
	now     func() time.Time
}

func NewMemoryAvatarCache(ttl time.Duration) *MemoryAvatarCache {
	return &MemoryAvatarCache{ttl: ttl, entries: map[string]AvatarEntry{}, now: time.Now}
}

func (c *MemoryAvatarCache) Lookup(_ context.Context, url string) (AvatarEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := avatarKey(url)
	e, ok := c.entries[key]
	if !ok {
		return AvatarEntry{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.FetchedAt) > c.ttl {
		delete(c.entries, key)
		return AvatarEntry{}, false
	}
	return e, true
}

func (c *MemoryAvatarCache) Remember(_ context.Context, url string, e AvatarEntry) {
	c.mu.Lock()
	c.entries[avatarKey(url)] = e
	c.mu.Unlock()
}
