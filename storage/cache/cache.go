package storage

import (
	"context"
	"fmt"
	"time"
)

// EntryInfo describes one live cache entry for introspection.
type EntryInfo struct {
	Key       string        `json:"key"`
	Age       time.Duration `json:"age"`
	TTL       time.Duration `json:"ttl"`
	Expired   bool          `json:"expired"`
	SizeBytes int           `json:"size_bytes"`
	Version   uint64        `json:"version"`
}

// CacheStats is a snapshot of cache behavior since the last reset. HitRate is
// hits / (hits + misses); it is 0 when no lookup has happened yet.
type CacheStats struct {
	Size         int         `json:"size"`
	MaxSize      int         `json:"max_size"`
	ExpiredCount int         `json:"expired_count"`
	Hits         uint64      `json:"hits"`
	Misses       uint64      `json:"misses"`
	HitRate      float64     `json:"hit_rate"`
	Entries      []EntryInfo `json:"entries"`
}

// CacheInterface defines the set of methods that need to be implemented to
// be used as a cache storage. Values are opaque payloads; callers own the
// encoding. The cache is best-effort: a corrupted or unreadable entry is
// reported as a miss, never as an error, so a cache problem can never block
// a fetch from the source of truth.
type CacheInterface interface {
	// Get returns the payload for key, or a miss if the key is absent,
	// expired, or was written before the last Clear.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores the payload under key with the given TTL, evicting the
	// least-recently-used entry if the cache is at capacity.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes a single key regardless of its TTL.
	Invalidate(ctx context.Context, key string) error
	// Clear drops every entry by advancing the cache version.
	Clear(ctx context.Context) error
	// Stats reports the current size, hit rate, and live entries.
	Stats(ctx context.Context) CacheStats
}

// NewCache creates a CacheInterface. With an empty redisURL it returns the
// bounded in-memory cache, which is the default for the tracking engine.
// With a Redis URL it connects to Redis and returns the shared backend, or
// an error if the connection failed.
func NewCache(redisURL string, capacity int) (CacheInterface, error) {
	if redisURL == "" {
		return NewMemoryCache(capacity), nil
	}
	cache := NewRedisCache(capacity)
	if err := cache.Connect(redisURL); err != nil {
		return nil, fmt.Errorf("failed to initialize cache storage: %w", err)
	}
	return cache, nil
}

// Key builds a deterministic cache key from an operation name and its
// parameters, e.g. Key("month", "2023-08", "all") -> "month:2023-08:all".
func Key(op string, params ...string) string {
	key := op
	for _, p := range params {
		key += ":" + p
	}
	return key
}
