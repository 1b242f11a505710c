package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// LRU is a size-bounded cache with optional per-entry TTL. It is safe for
// concurrent use.
type LRU struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	onEvict    func(key string)

	hits      int64
	misses    int64
	evictions int64
}

type lruEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewLRU creates a cache holding at most maxEntries values. A zero ttl
// keeps entries until evicted by size.
func NewLRU(maxEntries int, ttl time.Duration) *LRU {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &LRU{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	entry := elem.Value.(*lruEntry)
	if c.expiredLocked(entry) {
		c.removeLocked(elem)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.order.MoveToFront(elem)
	atomic.AddInt64(&c.hits, 1)
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entry when full.
func (c *LRU) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*lruEntry).key
		c.removeLocked(oldest)
		atomic.AddInt64(&c.evictions, 1)
		if c.onEvict != nil {
			c.onEvict(evicted)
		}
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value, expiresAt: expiresAt})
}

// Delete removes key if present.
func (c *LRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Purge removes every entry.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet collected.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the current counters.
func (c *LRU) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
	}
}

func (c *LRU) expiredLocked(entry *lruEntry) bool {
	return !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt)
}

func (c *LRU) removeLocked(elem *list.Element) {
	entry := elem.Value.(*lruEntry)
	c.order.Remove(elem)
	delete(c.entries, entry.key)
}
