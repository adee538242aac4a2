package storage

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultCapacity bounds the in-memory cache when the caller does not supply
// a capacity. A month of calendar data is one entry, so even a small bound
// covers years of browsing.
const DefaultCapacity = 32

type memoryEntry struct {
	key        string
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
	version    uint64
}

// MemoryCache is a bounded in-memory CacheInterface with per-entry TTL and a
// cache-wide version tag. Eviction is least-recently-used: Get refreshes an
// entry's recency, and Set beyond capacity drops the coldest entry. Clear
// advances the version tag, which orphans every existing entry without
// walking the map. It is safe for concurrent use.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	version  uint64

	hits    uint64
	misses  uint64
	expired uint64

	// now is swappable so tests can simulate TTL expiry without sleeping.
	now func() time.Time
}

// NewMemoryCache creates a MemoryCache holding at most capacity entries.
// A capacity of zero or less falls back to DefaultCapacity.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryCache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		version:  1,
		now:      time.Now,
	}
}

// SetNowFunc replaces the cache's clock. Intended for tests.
func (c *MemoryCache) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get implements CacheInterface. An entry written before the last Clear, or
// older than its TTL, counts as a miss and is dropped on the spot.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if entry.version != c.version {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) > entry.ttl {
		c.removeLocked(elem)
		c.expired++
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Set implements CacheInterface. Inserting past capacity evicts the
// least-recently-used entry.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.insertedAt = c.now()
		entry.ttl = ttl
		entry.version = c.version
		c.order.MoveToFront(elem)
		return nil
	}

	if len(c.entries) >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
		}
	}

	entry := &memoryEntry{
		key:        key,
		value:      value,
		insertedAt: c.now(),
		ttl:        ttl,
		version:    c.version,
	}
	c.entries[key] = c.order.PushFront(entry)
	return nil
}

// Invalidate implements CacheInterface.
func (c *MemoryCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Clear implements CacheInterface. It advances the version tag and resets
// the hit counters; stale entries fall out lazily on their next lookup.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
	c.expired = 0
	return nil
}

// Stats implements CacheInterface.
func (c *MemoryCache) Stats(ctx context.Context) CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := CacheStats{
		Size:         len(c.entries),
		MaxSize:      c.capacity,
		ExpiredCount: int(c.expired),
		Hits:         c.hits,
		Misses:       c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*memoryEntry)
		age := now.Sub(entry.insertedAt)
		stats.Entries = append(stats.Entries, EntryInfo{
			Key:       entry.key,
			Age:       age,
			TTL:       entry.ttl,
			Expired:   age > entry.ttl,
			SizeBytes: len(entry.value),
			Version:   entry.version,
		})
	}
	return stats
}

// removeLocked unlinks an element from both the map and the recency list.
// Callers must hold c.mu.
func (c *MemoryCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
