package snomedstore

import (
	"container/list"
	"sync"

	"github.com/wardle/go-terminology/internal/bin"
)

// conceptCache is a small read-through LRU cache in front of
// Concepts.Find. The store is read-only and safe for concurrent use, so
// the cache is guarded by its own mutex rather than relying on any
// store-level locking.
type conceptCache struct {
	mu       sync.Mutex
	capacity int
	items    map[uint64]*list.Element
	order    *list.List
}

type cacheEntry struct {
	id  uint64
	off bin.Offset
}

func newConceptCache(capacity int) *conceptCache {
	return &conceptCache{
		capacity: capacity,
		items:    make(map[uint64]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *conceptCache) get(id uint64) (bin.Offset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return 0, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).off, true
}

func (c *conceptCache) put(id uint64, off bin.Offset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		el.Value.(*cacheEntry).off = off
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{id: id, off: off})
	c.items[id] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).id)
		}
	}
}
