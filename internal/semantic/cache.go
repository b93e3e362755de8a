package semantic

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Detection is a single open-vocabulary match surfaced by the semantic
// backend.
type Detection struct {
	Label      string
	Confidence float64
	Phrase     string // the matched natural-language phrase
}

// CacheEntry is a PromptCache hit, TTL-bounded from its creation time.
type CacheEntry struct {
	PromptText string
	ImageHash  string
	Detections []Detection
	CreatedAt  time.Time
}

// IsExpired reports whether the entry has outlived ttl.
func (e CacheEntry) IsExpired(ttl time.Duration) bool {
	return time.Since(e.CreatedAt) > ttl
}

type cacheKey struct {
	prompt string
	hash   string
}

// Cache is the PromptCache/PromptManager of spec.md 4.9: keyed by
// (prompt_text, image_hash), TTL-bounded, LRU-evicted at a fixed capacity.
// Grounded on soockee-pixel-bot-go's dependency on
// github.com/hashicorp/golang-lru/v2 for exactly this shape of bounded
// cache, in preference to a hand-rolled doubly-linked list.
type Cache struct {
	ttl     time.Duration
	maxSize int
	lru     *lru.Cache[cacheKey, CacheEntry]
}

// NewCache constructs a cache with the given TTL and max size.
func NewCache(ttl time.Duration, maxSize int) (*Cache, error) {
	l, err := lru.New[cacheKey, CacheEntry](maxSize)
	if err != nil {
		return nil, err
	}
	return &Cache{ttl: ttl, maxSize: maxSize, lru: l}, nil
}

// Get returns cached detections for (prompt, hash) if present and not
// expired.
func (c *Cache) Get(prompt, hash string) ([]Detection, bool) {
	entry, ok := c.lru.Get(cacheKey{prompt, hash})
	if !ok {
		return nil, false
	}
	if entry.IsExpired(c.ttl) {
		c.lru.Remove(cacheKey{prompt, hash})
		return nil, false
	}
	return entry.Detections, true
}

// Put stores detections for (prompt, hash), evicting the least-recently
// used entry if the cache is at capacity.
func (c *Cache) Put(prompt, hash string, detections []Detection) {
	c.lru.Add(cacheKey{prompt, hash}, CacheEntry{
		PromptText: prompt,
		ImageHash:  hash,
		Detections: detections,
		CreatedAt:  time.Now(),
	})
}

// Clear removes every entry and returns the number removed.
func (c *Cache) Clear() int {
	n := c.lru.Len()
	c.lru.Purge()
	return n
}

// Stats is a snapshot of the cache's current occupancy and configuration.
type Stats struct {
	CachedResults int
	MaxCacheSize  int
	CacheTTL      time.Duration
}

// Stats returns a snapshot suitable for an operator status endpoint.
func (c *Cache) Stats() Stats {
	return Stats{CachedResults: c.lru.Len(), MaxCacheSize: c.maxSize, CacheTTL: c.ttl}
}
