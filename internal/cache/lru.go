// Package cache provides a size-bounded LRU cache whose entries can be
// invalidated by tag.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRUCache is an LRU cache with optional TTL and tag-based invalidation.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	tags    map[string]map[string]struct{}
	lru     *list.List
	// generation increases on every invalidation. Writers that computed a
	// value before an invalidation must not store it afterwards.
	generation uint64
	now        func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	tags      []string
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache. A ttl of zero disables expiry.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		tags:    make(map[string]map[string]struct{}),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.expired(item) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

// Generation returns a token to pass to SetIfCurrent.
func (c *LRUCache[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Set stores a value in the cache under the given tags.
func (c *LRUCache[T]) Set(key string, data T, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, data, tags)
}

// SetIfCurrent stores a value only if nothing was invalidated since gen was
// taken. It reports whether the value was stored.
func (c *LRUCache[T]) SetIfCurrent(gen uint64, key string, data T, tags ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return false
	}
	c.set(key, data, tags)
	return true
}

func (c *LRUCache[T]) set(key string, data T, tags []string) {
	item := &cacheItem[T]{
		key:  key,
		data: data,
		tags: tags,
	}
	if c.ttl > 0 {
		item.expiresAt = c.now().Add(c.ttl)
	}

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem
	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// InvalidateTag removes every entry stored under tag and returns how many
// were removed.
func (c *LRUCache[T]) InvalidateTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	keys := c.tags[tag]
	removed := 0
	for key := range keys {
		if elem, exists := c.items[key]; exists {
			c.removeElement(elem)
			removed++
		}
	}
	delete(c.tags, tag)
	return removed
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	for _, tag := range item.tags {
		if keys, ok := c.tags[tag]; ok {
			delete(keys, item.key)
			if len(keys) == 0 {
				delete(c.tags, tag)
			}
		}
	}
	c.lru.Remove(elem)
}

func (c *LRUCache[T]) expired(item *cacheItem[T]) bool {
	return !item.expiresAt.IsZero() && c.now().After(item.expiresAt)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if c.expired(elem.Value.(*cacheItem[T])) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// RunJanitor calls CleanExpired every interval until ctx is done. It
// returns at once when the cache has no TTL.
func (c *LRUCache[T]) RunJanitor(ctx context.Context, interval time.Duration) {
	if c.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CleanExpired()
		}
	}
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
