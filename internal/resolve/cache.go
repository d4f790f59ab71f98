package resolve

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rinkside-ai/rinkside/internal/model"
)

const cacheShards = 16

// Cache is a sharded TTL cache for resolved records. Expiry is lazy: stale
// entries are dropped when read or when a shard grows past its share of the
// size bound.
type Cache struct {
	shards [cacheShards]cacheShard
	ttl    time.Duration

	// perShardCap is the rough per-shard entry bound derived from the
	// overall cache policy.
	perShardCap int
}

type cacheShard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	record    model.Record
	expiresAt time.Time
}

// NewCache creates a cache holding roughly maxEntries records with the given
// TTL.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	c := &Cache{ttl: ttl, perShardCap: maxEntries / cacheShards}
	if c.perShardCap < 1 {
		c.perShardCap = 1
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]cacheEntry)
	}
	return c
}

// CacheKey builds the canonical cache key for a lookup. Projections hash the
// same regardless of order; an empty projection keys as "all".
func CacheKey(objectType, id string, projection []string) string {
	proj := "all"
	if len(projection) > 0 {
		sorted := append([]string(nil), projection...)
		sort.Strings(sorted)
		proj = strings.Join(sorted, ",")
	}
	return objectType + ":" + id + ":" + proj
}

// Get returns a copy of the cached record, or (nil, false) on miss or
// expiry.
func (c *Cache) Get(key string) (model.Record, bool) {
	s := c.shard(key)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Recheck under the write lock; a concurrent Put may have refreshed it.
		if cur, still := s.entries[key]; still && time.Now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return model.CloneRecord(entry.record), true
}

// Put stores a record copy under key with the cache TTL.
func (c *Cache) Put(key string, record model.Record) {
	s := c.shard(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= c.perShardCap {
		s.evictLocked(c.perShardCap)
	}
	s.entries[key] = cacheEntry{
		record:    model.CloneRecord(record),
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]cacheEntry)
		s.mu.Unlock()
	}
}

// Len returns the current entry count across all shards.
func (c *Cache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (c *Cache) shard(key string) *cacheShard {
	return &c.shards[fnv32(key)%cacheShards]
}

// evictLocked frees room in a full shard: expired entries first, then
// arbitrary ones until the shard is under the cap. Caller holds the write
// lock.
func (s *cacheShard) evictLocked(limit int) {
	now := time.Now()
	for k, v := range s.entries {
		if now.After(v.expiresAt) {
			delete(s.entries, k)
		}
	}
	for k := range s.entries {
		if len(s.entries) < limit {
			break
		}
		delete(s.entries, k)
	}
}

func fnv32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
