package catalog

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// LookupCache memoizes fallback video lookups. Hits keep their video id in an
// LRU; misses go into a Bloom filter so repeated lookups for tracks that have
// no fallback video stop hammering the mirrors. A Bloom false positive only
// costs one redundant mirror round-trip.
type LookupCache struct {
	hits         *lru.Cache[string, string]
	misses       *bloom.BloomFilter
	mutex        sync.RWMutex
	maxHits      int
	missEstimate int
	missRate     float64
	missCount    int
}

// NewLookupCache creates a cache for up to maxHits resolved videos and an
// expected missEstimate of negative lookups at the given false positive rate.
func NewLookupCache(maxHits, missEstimate int, falsePositiveRate float64) *LookupCache {
	hitCache, _ := lru.New[string, string](maxHits)

	if missEstimate < 0 || missEstimate > int(^uint(0)>>1) {
		panic("missEstimate value out of range for uint conversion")
	}

	return &LookupCache{
		hits:         hitCache,
		misses:       bloom.NewWithEstimates(uint(missEstimate), falsePositiveRate),
		maxHits:      maxHits,
		missEstimate: missEstimate,
		missRate:     falsePositiveRate,
	}
}

// Get returns the cached video id for a lookup key. found reports a cache
// decision was made; an empty videoID with found=true means a cached miss.
func (c *LookupCache) Get(key string) (videoID string, found bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if id, ok := c.hits.Get(key); ok {
		return id, true
	}
	if c.misses.TestString(key) {
		return "", true
	}
	return "", false
}

// PutHit records a resolved video id.
func (c *LookupCache) PutHit(key, videoID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.hits.Add(key, videoID)
}

// PutMiss records an exhausted lookup. The filter is rebuilt once the number
// of recorded misses outgrows its sizing, trading a burst of re-lookups for a
// bounded false positive rate.
func (c *LookupCache) PutMiss(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.missCount++
	if c.missCount > c.missEstimate {
		c.misses = bloom.NewWithEstimates(uint(c.missEstimate), c.missRate)
		c.missCount = 1
	}
	c.misses.AddString(key)
}

// Len returns the number of cached hits.
func (c *LookupCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.hits.Len()
}
