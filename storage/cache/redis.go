package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a CacheInterface backed by a Redis server, for deployments
// where the aggregate cache should survive process restarts or be shared by
// several frontends. TTL expiry is delegated to Redis; the version tag is
// folded into the key prefix so Clear can orphan every entry without a
// FLUSHDB. Capacity is reported for introspection only, Redis applies its
// own maxmemory policy.
type RedisCache struct {
	client   *redis.Client
	capacity int

	mu      sync.Mutex
	version uint64
	// inserted tracks keys written through this instance so Stats can list
	// them; Redis itself stays the source of truth for presence.
	inserted map[string]insertedMeta
	hits     uint64
	misses   uint64
	expired  uint64
}

type insertedMeta struct {
	at  time.Time
	ttl time.Duration
}

// NewRedisCache creates a new instance of RedisCache. This function doesn't
// establish a connection to the Redis server; use the Connect method of the
// returned instance.
func NewRedisCache(capacity int) *RedisCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisCache{
		capacity: capacity,
		version:  1,
		inserted: make(map[string]insertedMeta),
	}
}

// Connect establishes a connection to the Redis backend.
func (r *RedisCache) Connect(redisURL string) error {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	r.client = redis.NewClient(opt)

	_, err = r.client.Ping(context.Background()).Result()
	return err
}

// Disconnect closes the connection to the Redis server.
func (r *RedisCache) Disconnect() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// versionedKey prefixes a key with the current cache version.
func (r *RedisCache) versionedKey(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("v%d:%s", r.version, key)
}

// Get implements CacheInterface. Any Redis-side failure is treated as a
// miss so the caller falls through to the source of truth.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, r.versionedKey(key)).Bytes()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if err == redis.Nil {
			if meta, ok := r.inserted[key]; ok {
				delete(r.inserted, key)
				if time.Since(meta.at) > meta.ttl {
					r.expired++
				}
			}
		}
		r.misses++
		return nil, false
	}
	r.hits++
	return value, true
}

// Set implements CacheInterface.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.versionedKey(key), value, ttl).Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.inserted[key] = insertedMeta{at: time.Now(), ttl: ttl}
	r.mu.Unlock()
	return nil
}

// Invalidate implements CacheInterface.
func (r *RedisCache) Invalidate(ctx context.Context, key string) error {
	err := r.client.Del(ctx, r.versionedKey(key)).Err()
	r.mu.Lock()
	delete(r.inserted, key)
	r.mu.Unlock()
	return err
}

// Clear implements CacheInterface. Advancing the version prefix makes every
// existing key unreachable; Redis reclaims them as their TTLs lapse.
func (r *RedisCache) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version++
	r.inserted = make(map[string]insertedMeta)
	r.hits = 0
	r.misses = 0
	r.expired = 0
	return nil
}

// Stats implements CacheInterface. Entries reflect keys written through this
// instance since the last Clear.
func (r *RedisCache) Stats(ctx context.Context) CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := CacheStats{
		Size:         len(r.inserted),
		MaxSize:      r.capacity,
		ExpiredCount: int(r.expired),
		Hits:         r.hits,
		Misses:       r.misses,
	}
	if total := r.hits + r.misses; total > 0 {
		stats.HitRate = float64(r.hits) / float64(total)
	}
	now := time.Now()
	for key, meta := range r.inserted {
		age := now.Sub(meta.at)
		stats.Entries = append(stats.Entries, EntryInfo{
			Key:       key,
			Age:       age,
			TTL:       meta.ttl,
			Expired:   age > meta.ttl,
			Version:   r.version,
		})
	}
	return stats
}
