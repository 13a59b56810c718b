// Package memory provides small in-process caches. LRUTTL backs the
// store's manifest cache and the gateway's per-run progress buffers.
package memory

import (
	"container/list"
	"sync"
	"time"
)

type item[K comparable, V any] struct {
	key      K
	value    V
	deadline time.Time
	bytes    int
}

// LRUTTL is a threadsafe LRU cache with per-entry TTL and optional entry
// and byte budgets. Non-positive limits fall back to one entry and no
// byte cap.
type LRUTTL[K comparable, V any] struct {
	mu sync.Mutex

	order *list.List
	index map[K]*list.Element

	maxEntries int
	maxBytes   int
	usedBytes  int
	ttl        time.Duration
}

func NewLRUTTL[K comparable, V any](maxEntries int, maxBytes int, ttl time.Duration) *LRUTTL[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LRUTTL[K, V]{
		order:      list.New(),
		index:      make(map[K]*list.Element),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ttl:        ttl,
	}
}

// Get returns the live value for key. Expired entries are removed on read.
func (c *LRUTTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return zero, false
	}
	it := el.Value.(*item[K, V])
	if time.Now().After(it.deadline) {
		c.dropLocked(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return it.value, true
}

// Set inserts or refreshes key, resetting its TTL. sizeBytes only matters
// when the cache was built with a byte budget.
func (c *LRUTTL[K, V]) Set(key K, value V, sizeBytes int) {
	if c == nil {
		return
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		it := el.Value.(*item[K, V])
		c.usedBytes += sizeBytes - it.bytes
		it.value = value
		it.bytes = sizeBytes
		it.deadline = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&item[K, V]{
			key:      key,
			value:    value,
			bytes:    sizeBytes,
			deadline: time.Now().Add(c.ttl),
		})
		c.index[key] = el
		c.usedBytes += sizeBytes
	}

	for c.overBudgetLocked() {
		c.dropLocked(c.order.Back())
	}
}

func (c *LRUTTL[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.dropLocked(el)
	}
}

func (c *LRUTTL[K, V]) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = list.New()
	c.index = make(map[K]*list.Element)
	c.usedBytes = 0
}

// Len reports the current entry count, including entries that have expired
// but have not been read since.
func (c *LRUTTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUTTL[K, V]) overBudgetLocked() bool {
	if c.order.Len() == 0 {
		return false
	}
	if c.order.Len() > c.maxEntries {
		return true
	}
	return c.maxBytes > 0 && c.usedBytes > c.maxBytes
}

func (c *LRUTTL[K, V]) dropLocked(el *list.Element) {
	if el == nil {
		return
	}
	c.order.Remove(el)
	it := el.Value.(*item[K, V])
	delete(c.index, it.key)
	c.usedBytes -= it.bytes
	if c.usedBytes < 0 {
		c.usedBytes = 0
	}
}
