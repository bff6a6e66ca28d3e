// Package cache provides the in-memory LRU caches the pipeline leans on:
// catalog snapshots keyed by URL and rendered documents keyed by document
// key, the latter bounded by total bytes.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config controls cache capacity and expiry.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called for every entry dropped to satisfy a budget or
	// expired on read.
	OnEvict func(key, value any)
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 100}
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	size      int64
	expiresAt time.Time
}

// LRU is a thread-safe least-recently-used cache. With a sizer attached
// it is additionally bounded by the byte total across live entries.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config
	maxBytes  int64
	sizer     func(V) int64
	elems     map[K]*list.Element
	order     *list.List // front is most recently used
	bytes     int64
	hits      int64
	misses    int64
	evictions int64
}

// NewLRU creates a count-bounded cache.
func NewLRU[K comparable, V any](config Config) *LRU[K, V] {
	return newLRU[K, V](config, 0, nil)
}

// NewSizedLRU creates a cache bounded by entry count and by the sum of
// sizer(value) across live entries.
func NewSizedLRU[K comparable, V any](config Config, maxBytes int64, sizer func(V) int64) *LRU[K, V] {
	return newLRU[K, V](config, maxBytes, sizer)
}

func newLRU[K comparable, V any](config Config, maxBytes int64, sizer func(V) int64) *LRU[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &LRU[K, V]{
		config:   config,
		maxBytes: maxBytes,
		sizer:    sizer,
		elems:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get returns the live value under key, refreshing its recency. An
// expired entry is dropped and reported as a miss.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.elems[key]
	if !ok {
		c.misses++
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.config.TTL > 0 && time.Now().After(ent.expiresAt) {
		c.drop(el)
		c.evictions++
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return ent.value, true
}

// Put stores value under key, evicting from the cold end until both the
// entry and byte budgets hold. A value larger than the whole byte budget
// is not cached at all.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var size int64
	if c.sizer != nil {
		size = c.sizer(value)
		if c.maxBytes > 0 && size > c.maxBytes {
			return
		}
	}

	if el, ok := c.elems[key]; ok {
		ent := el.Value.(*entry[K, V])
		c.bytes += size - ent.size
		ent.value = value
		ent.size = size
		if c.config.TTL > 0 {
			ent.expiresAt = time.Now().Add(c.config.TTL)
		}
		c.order.MoveToFront(el)
	} else {
		ent := &entry[K, V]{key: key, value: value, size: size}
		if c.config.TTL > 0 {
			ent.expiresAt = time.Now().Add(c.config.TTL)
		}
		c.elems[key] = c.order.PushFront(ent)
		c.bytes += size
	}

	for c.overBudget() {
		el := c.order.Back()
		if el == nil || el == c.order.Front() {
			break
		}
		c.drop(el)
		c.evictions++
	}
}

func (c *LRU[K, V]) overBudget() bool {
	if c.config.MaxSize > 0 && c.order.Len() > c.config.MaxSize {
		return true
	}
	return c.maxBytes > 0 && c.bytes > c.maxBytes
}

// Remove drops the entry under key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elems[key]; ok {
		c.drop(el)
	}
}

// Clear drops every entry without firing OnEvict.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elems = make(map[K]*list.Element)
	c.order.Init()
	c.bytes = 0
}

// Len returns the number of live entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of cache activity.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   c.order.Len(),
		Bytes:     c.bytes,
	}
}

func (c *LRU[K, V]) drop(el *list.Element) {
	c.order.Remove(el)
	ent := el.Value.(*entry[K, V])
	delete(c.elems, ent.key)
	c.bytes -= ent.size
	if c.config.OnEvict != nil {
		c.config.OnEvict(ent.key, ent.value)
	}
}

// CatalogCache holds fetched catalog snapshots keyed by catalog URL.
type CatalogCache struct {
	lru *LRU[string, []byte]
}

// NewCatalogCache creates a catalog snapshot cache.
func NewCatalogCache(config Config) *CatalogCache {
	return &CatalogCache{lru: NewLRU[string, []byte](config)}
}

// NewDefaultCatalogCache keeps a handful of snapshots for an hour, so
// catalog updates are eventually seen without refetching per document.
func NewDefaultCatalogCache() *CatalogCache {
	config := DefaultConfig()
	config.MaxSize = 4
	config.TTL = time.Hour
	return NewCatalogCache(config)
}

// Get retrieves a catalog snapshot by URL.
func (c *CatalogCache) Get(url string) ([]byte, bool) { return c.lru.Get(url) }

// Put stores a catalog snapshot.
func (c *CatalogCache) Put(url string, data []byte) { c.lru.Put(url, data) }

// Remove drops the snapshot for url.
func (c *CatalogCache) Remove(url string) { c.lru.Remove(url) }

// Len returns the number of cached snapshots.
func (c *CatalogCache) Len() int { return c.lru.Len() }

// Stats returns cache statistics.
func (c *CatalogCache) Stats() Stats { return c.lru.Stats() }

// DocumentCache holds rendered document HTML keyed by document key.
// Rendered documents can run to megabytes, so the cache is bounded by
// total bytes on top of the entry count.
type DocumentCache struct {
	lru *LRU[string, []byte]
}

// NewDocumentCache creates a document cache bounded by maxBytes.
func NewDocumentCache(config Config, maxBytes int64) *DocumentCache {
	return &DocumentCache{
		lru: NewSizedLRU[string, []byte](config, maxBytes, func(v []byte) int64 {
			return int64(len(v))
		}),
	}
}

// NewDefaultDocumentCache creates a document cache holding up to 32
// documents within a 64 MiB budget.
func NewDefaultDocumentCache() *DocumentCache {
	config := DefaultConfig()
	config.MaxSize = 32
	return NewDocumentCache(config, 64<<20)
}

// Get retrieves rendered document HTML by key.
func (c *DocumentCache) Get(key string) ([]byte, bool) { return c.lru.Get(key) }

// Put stores rendered document HTML.
func (c *DocumentCache) Put(key string, html []byte) { c.lru.Put(key, html) }

// Remove drops the document under key.
func (c *DocumentCache) Remove(key string) { c.lru.Remove(key) }

// Len returns the number of cached documents.
func (c *DocumentCache) Len() int { return c.lru.Len() }

// Stats returns cache statistics.
func (c *DocumentCache) Stats() Stats { return c.lru.Stats() }
