// Package cache implements the in-memory source cache: a bounded LRU map
// from the hash of a source URL to the raw bytes fetched from it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidCapacity is returned by New when the capacity is not positive.
var ErrInvalidCapacity = errors.New("cache capacity must be positive")

// Fetcher retrieves the raw bytes of a source URL on a cache miss.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Observer receives cache events. Implementations must be safe for concurrent use.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEviction()
}

type nopObserver struct{}

func (nopObserver) CacheHit()      {}
func (nopObserver) CacheMiss()     {}
func (nopObserver) CacheEviction() {}

// Option configures a Cache.
type Option func(*Cache)

// WithObserver reports hits, misses and evictions to o.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

type entry struct {
	url  string
	data []byte
}

// Cache is a concurrency-safe, strictly least-recently-used source cache.
//
// Stored byte slices are shared between every caller that hits the same
// entry and must be treated as read-only.
type Cache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[uint64, entry]
	fetches  singleflight.Group
	fetcher  Fetcher
	observer Observer
}

// New creates a Cache holding at most capacity entries.
func New(capacity int, f Fetcher, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	c := &Cache{fetcher: f, observer: nopObserver{}}
	for _, opt := range opts {
		opt(c)
	}

	lru, err := simplelru.NewLRU[uint64, entry](capacity, func(uint64, entry) {
		c.observer.CacheEviction()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCapacity, err)
	}
	c.lru = lru

	return c, nil
}

// Lookup returns the bytes stored under key and marks the entry as most recently used.
func (c *Cache) Lookup(key uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Insert stores data under key, refreshing its recency if already present.
// The least recently used entry is evicted when the cache is full.
func (c *Cache) Insert(key uint64, url string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, entry{url: url, data: data})
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// lookupURL is Lookup with a check that the entry was stored for url.
// A colliding entry from another URL is reported as a miss.
func (c *Cache) lookupURL(key uint64, url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok || e.url != url {
		return nil, false
	}
	return e.data, true
}

// GetOrFetch returns the bytes for rawURL, fetching and caching them on a miss.
// hit reports whether the bytes were served from the cache.
//
// The cache lock is never held during a fetch. Concurrent misses for the
// same URL share a single fetch, misses for different URLs run in parallel.
func (c *Cache) GetOrFetch(ctx context.Context, rawURL string) (data []byte, hit bool, err error) {
	url := Canonicalize(rawURL)
	key := hashKey(url)

	if data, ok := c.lookupURL(key, url); ok {
		c.observer.CacheHit()
		return data, true, nil
	}
	c.observer.CacheMiss()

	// The shared fetch outlives any single waiter; the fetcher's own timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(strconv.FormatUint(key, 16)+" "+url, func() (any, error) {
		if data, ok := c.lookupURL(key, url); ok {
			return data, nil
		}

		data, err := c.fetcher.Fetch(fetchCtx, url)
		if err != nil {
			return nil, err
		}

		c.Insert(key, url, data)
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}
