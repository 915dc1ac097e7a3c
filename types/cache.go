package types

import (
	"time"
)

type CacheManager interface {
	LifecycleManager
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
	Invalidate(pattern KeyPattern) (int, error)
	Clear() error
	Stats() CacheStats
}

type CacheManagerCreator func(config *CacheConfig) (CacheManager, error)

// KeyPattern selects cache keys for invalidation.
type KeyPattern interface {
	Match(key string) bool
	// LiteralPrefix is a prefix every matching key starts with, or "" when unknown.
	LiteralPrefix() string
	String() string
}

type CacheEntry struct {
	Value     interface{}   `json:"value"`
	TTL       time.Duration `json:"ttl"`
	CreatedAt time.Time     `json:"created_at"`
}

type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}
