package cache

import "sync"

type lruNode[K comparable, V any] struct {
	key   K
	value V
	size  uint64
	prev  *lruNode[K, V]
	next  *lruNode[K, V]
}

// Stats counts cache traffic.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Bytes     uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 without traffic.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LRU is a least-recently-used cache bounded by entry count and by the
// sum of entry sizes. It is safe for concurrent use.
type LRU[K comparable, V any] struct {
	maxEntries int
	maxBytes   uint64
	onEvict    func(K, V)

	mu    sync.Mutex
	items map[K]*lruNode[K, V]
	// head is the most recently used entry, tail the least.
	head, tail *lruNode[K, V]
	bytes      uint64
	stats      Stats
}

// NewLRU creates a cache. A zero bound disables that bound. onEvict may be
// nil; it runs with the cache lock held and must not call back into it.
func NewLRU[K comparable, V any](maxEntries int, maxBytes uint64, onEvict func(K, V)) *LRU[K, V] {
	return &LRU[K, V]{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		onEvict:    onEvict,
		items:      make(map[K]*lruNode[K, V]),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	c.moveToFront(node)
	return node.value, true
}

// Put inserts or replaces key with an estimated size in bytes, then
// enforces the bounds.
func (c *LRU[K, V]) Put(key K, value V, size uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.bytes -= node.size
		node.value, node.size = value, size
		c.bytes += size
		c.moveToFront(node)
	} else {
		node := &lruNode[K, V]{key: key, value: value, size: size}
		c.items[key] = node
		c.pushFront(node)
		c.bytes += size
	}
	c.enforce()
}

// Remove deletes key without running the eviction callback.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.items[key]
	if !ok {
		return false
	}
	c.drop(node)
	return true
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	s.Bytes = c.bytes
	return s
}

// Purge evicts every entry, running the eviction callback.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.tail != nil {
		c.evict(c.tail)
	}
}

func (c *LRU[K, V]) over() bool {
	return (c.maxEntries > 0 && len(c.items) > c.maxEntries) ||
		(c.maxBytes > 0 && c.bytes > c.maxBytes)
}

// enforce evicts the oldest quarter of the entries until both bounds hold.
func (c *LRU[K, V]) enforce() {
	for c.over() && c.tail != nil {
		n := max(len(c.items)/4, 1)
		for range n {
			if c.tail == nil {
				break
			}
			c.evict(c.tail)
		}
	}
}

func (c *LRU[K, V]) evict(node *lruNode[K, V]) {
	c.drop(node)
	c.stats.Evictions++
	if c.onEvict != nil {
		c.onEvict(node.key, node.value)
	}
}

func (c *LRU[K, V]) drop(node *lruNode[K, V]) {
	c.unlink(node)
	delete(c.items, node.key)
	c.bytes -= node.size
}

func (c *LRU[K, V]) pushFront(node *lruNode[K, V]) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *LRU[K, V]) moveToFront(node *lruNode[K, V]) {
	if node == c.head {
		return
	}
	c.unlink(node)
	c.pushFront(node)
}

func (c *LRU[K, V]) unlink(node *lruNode[K, V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev, node.next = nil, nil
}
