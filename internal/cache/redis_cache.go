package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisAvatarCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAvatarCache(rdb *redis.Client, ttl time.Duration) *RedisAvatarCache {
	return &RedisAvatarCache{rdb: rdb, ttl: ttl}
}

func (c *RedisAvatarCache) Lookup(ctx context.Context, url string) (AvatarEntry, bool) {
	key := avatarKey(url)
	s, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return AvatarEntry{}, false
	}
	var e AvatarEntry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		// corrupt entry: drop it
		_ = c.rdb.Del(ctx, key).Err()
		return AvatarEntry{}, false
	}
	return e, true
}

func (c *RedisAvatarCache) Remember(ctx context.Context, url string, e AvatarEntry) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, avatarKey(url), b, c.ttl).Err()
}
