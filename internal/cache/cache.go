package cache

import (
	"sync"
	"time"
)

// entry 记录值与插入时间；过期判定始终基于插入时刻 + ttl。
type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.Sub(e.insertedAt) > e.ttl
}

// Cache 是容量受限的 TTL 缓存。过期条目在读取时按 miss 处理并被清除，
// 不依赖后台清扫协程。容量满时淘汰插入时间最早的条目。
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]entry[V]
	maxSize int
	nowFn   func() time.Time
}

func New[K comparable, V any](maxSize int) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Cache[K, V]{
		items:   make(map[K]entry[V], maxSize),
		maxSize: maxSize,
		nowFn:   time.Now,
	}
}

// SetClock 注入时钟，仅测试使用。
func (c *Cache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.nowFn = now
	}
}

// Get 返回未过期的值。过期条目被当场删除并按 miss 返回。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if item.expired(c.nowFn()) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return item.value, true
}

// Put 写入值。已满时先淘汰插入最早的条目再写入。
func (c *Cache[K, V]) Put(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFn()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = entry[V]{value: value, insertedAt: now, ttl: ttl}
}

func (c *Cache[K, V]) evictOldest() {
	var (
		oldestKey K
		oldestAt  time.Time
		found     bool
	)
	for key, item := range c.items {
		if !found || item.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = item.insertedAt
			found = true
		}
	}
	if found {
		delete(c.items, oldestKey)
	}
}

// Delete 删除指定条目。
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len 返回当前条目数（含尚未被读取到的过期条目）。
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
