package candle

import (
	"sync"
	"time"
)

// DatasetCache is a small time-boxed cache of prepared datasets keyed by
// symbol/timeframe/range. Backtests over the same window hit the cache
// instead of the store; stale or excess entries are evicted on access,
// oldest last-access first.
type DatasetCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	entries    map[string]*cacheEntry

	now func() time.Time // injectable for tests
}

type cacheEntry struct {
	dataset    *Dataset
	lastAccess time.Time
}

// NewDatasetCache creates a cache holding at most maxEntries datasets, each
// expiring ttl after its last access. maxEntries <= 0 defaults to 10.
func NewDatasetCache(maxEntries int, ttl time.Duration) *DatasetCache {
	if maxEntries <= 0 {
		maxEntries = 10
	}
	return &DatasetCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*cacheEntry),
		now:        time.Now,
	}
}

// Get returns the cached dataset for key, refreshing its last-access time.
func (dc *DatasetCache) Get(key string) (*Dataset, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.entries[key]
	if !ok {
		return nil, false
	}
	if dc.ttl > 0 && dc.now().Sub(e.lastAccess) > dc.ttl {
		delete(dc.entries, key)
		return nil, false
	}
	e.lastAccess = dc.now()
	return e.dataset, true
}

// Put stores a dataset under key, evicting the least recently used entries
// when the cache grows past its capacity.
func (dc *DatasetCache) Put(key string, ds *Dataset) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.entries[key] = &cacheEntry{dataset: ds, lastAccess: dc.now()}

	for len(dc.entries) > dc.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range dc.entries {
			if oldestKey == "" || e.lastAccess.Before(oldest) {
				oldestKey = k
				oldest = e.lastAccess
			}
		}
		delete(dc.entries, oldestKey)
	}
}

// Len returns the number of cached datasets.
func (dc *DatasetCache) Len() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return len(dc.entries)
}
