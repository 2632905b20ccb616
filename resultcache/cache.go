// Package resultcache memoizes search, autocomplete and suggestion responses
// in memory. Entries expire after a fixed TTL measured from insertion, and a
// full cache evicts its oldest-inserted entry. Reads never reorder entries.
package resultcache

import (
	"sync/atomic"
	"time"

	"music-search-api-go/logcolors"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 50
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "music_search_result_cache_hits_total",
		Help: "Result cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "music_search_result_cache_misses_total",
		Help: "Result cache misses, expired entries included.",
	})
	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "music_search_result_cache_evictions_total",
		Help: "Entries removed for capacity, expiry or invalidation.",
	})
)

// Entry is one memoized value and the time it was stored.
type Entry struct {
	Data      any
	Timestamp time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	lru    *expirable.LRU[string, Entry]
	ttl    time.Duration
	size   int
	hits   atomic.Int64
	misses atomic.Int64
}

func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	onEvict := func(key string, _ Entry) {
		cacheEvictionsTotal.Inc()
		log.Debugf("%s Evicted %s", logcolors.LogResultCache, key)
	}
	return &Cache{
		lru:  expirable.NewLRU[string, Entry](maxEntries, onEvict, ttl),
		ttl:  ttl,
		size: maxEntries,
	}
}

// Get returns the data stored under key if it has not expired. An expired
// entry is removed on the spot.
func (c *Cache) Get(key string) (any, bool) {
	// Peek keeps insertion order intact; Get would promote the entry.
	entry, ok := c.lru.Peek(key)
	if !ok {
		c.lru.Remove(key)
		c.misses.Add(1)
		cacheMissesTotal.Inc()
		return nil, false
	}
	c.hits.Add(1)
	cacheHitsTotal.Inc()
	return entry.Data, true
}

// Set stores data under key. When the cache is full the oldest-inserted entry
// is evicted first; eviction and insertion happen under one lock.
func (c *Cache) Set(key string, data any) {
	c.lru.Add(key, Entry{Data: data, Timestamp: time.Now()})
}

func (c *Cache) Delete(key string) {
	c.lru.Remove(key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	n := c.lru.Len()
	c.lru.Purge()
	log.Infof("%s Dropped %d entries", logcolors.LogResultCacheClear, n)
}

// Len counts stored entries, including expired ones not yet reaped.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Keys returns the live keys from oldest to newest.
func (c *Cache) Keys() []string {
	return c.lru.Keys()
}

// Stats is a point-in-time view for the /stats endpoint.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"maxEntries"`
	TTLSeconds float64 `json:"ttlSeconds"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hitRate"`
}

func (c *Cache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Entries:    c.lru.Len(),
		MaxEntries: c.size,
		TTLSeconds: c.ttl.Seconds(),
		Hits:       hits,
		Misses:     misses,
		HitRate:    rate,
	}
}

// Lookup is Get with the stored value asserted to T. A value of another type
// counts as a miss.
func Lookup[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
