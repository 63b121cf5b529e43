package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AvatarEntry remembers where a remote avatar was last staged.
type AvatarEntry struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// AvatarCache maps avatar URLs to an already downloaded copy. Lookups are best
// effort: errors read as a miss.
type AvatarCache interface {
	Lookup(ctx context.Context, url string) (AvatarEntry, bool)
	Remember(ctx context.Context, url string, e AvatarEntry)
}

func avatarKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "avatar:url:" + hex.EncodeToString(sum[:16])
}
