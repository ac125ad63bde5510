package epa

import (
	"container/list"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/scoutspr/pkg/metrics"
)

// Default cache configuration constants.
const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// CacheOption applies a configuration option to the Cache.
type CacheOption func(*Cache)

// WithMaxEntries bounds the number of cached breakdowns. The oldest entry
// is evicted when a new one would exceed the bound.
func WithMaxEntries(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithTTL sets how long a cached breakdown stays valid.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// entry is one cached breakdown plus the time it was stored.
type entry struct {
	key      uint64
	value    Breakdown
	storedAt time.Time
}

// Cache is a bounded, time-expiring breakdown cache. It is owned by the
// calculator that uses it and guarded by its own mutex.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*list.Element
	order   *list.List // front = newest insertion
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates an empty cache with configuration options.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		maxSize: defaultCacheSize,
		ttl:     defaultCacheTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = make(map[uint64]*list.Element, c.maxSize)
	c.order = list.New()
	return c
}

// Key derives the cache key for a team, year and set of observation ids.
// The ids are sorted first so the key does not depend on input order.
func Key(team, year int, ids []string) uint64 {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	d := xxhash.New()
	_, _ = d.WriteString(strconv.Itoa(team))
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(strconv.Itoa(year))
	for _, id := range sorted {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(id)
	}
	return d.Sum64()
}

// Get returns the cached breakdown for key. Expired entries are dropped
// and reported as misses.
func (c *Cache) Get(key uint64) (Breakdown, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Breakdown{}, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.storedAt) > c.ttl {
		c.remove(el)
		return Breakdown{}, false
	}
	return e.value, true
}

// Put stores b under key, replacing any previous value.
func (c *Cache) Put(key uint64, b Breakdown) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = b
		e.storedAt = now
		c.order.MoveToFront(el)
		return
	}

	for len(c.entries) >= c.maxSize {
		c.remove(c.order.Back())
		metrics.RecordEPACacheEviction()
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: b, storedAt: now})
	metrics.UpdateEPACacheSize(len(c.entries))
}

// Purge drops every expired entry and returns how many were removed.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	// Entries are ordered by insertion time, so stop at the first fresh one.
	for el := c.order.Back(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.storedAt) <= c.ttl {
			break
		}
		prev := el.Prev()
		c.remove(el)
		removed++
		el = prev
	}
	return removed
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove unlinks el. Must be called with c.mu held.
func (c *Cache) remove(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*entry)
	delete(c.entries, e.key)
	c.order.Remove(el)
	metrics.UpdateEPACacheSize(len(c.entries))
}
