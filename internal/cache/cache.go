// Package cache provides a bounded, key-addressed in-memory cache whose slots
// hold either a ready value or a handle to an in-flight load, so concurrent
// readers of the same key share a single fetch.
package cache

import (
	"container/list"
	"context"
	"sync"
)

type slot[V any] struct {
	key   string
	entry *Entry[V]
	cost  int64
}

// EntryCache maps string keys to entries with LRU eviction of ready entries.
// In-progress entries are never evicted; while only in-progress entries
// remain the cache may temporarily hold more than Capacity entries.
type EntryCache[V any] struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is most recently used
	cost  int64
	opts  Options[V]
}

// New creates an EntryCache
func New[V any](opts Options[V]) *EntryCache[V] {
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	return &EntryCache[V]{
		items: make(map[string]*list.Element),
		order: list.New(),
		opts:  opts,
	}
}

// Get returns the entry for key and marks it recently used
func (c *EntryCache[V]) Get(key string) (*Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.opts.Metrics.Miss()
		return nil, false
	}
	c.order.MoveToFront(el)
	c.opts.Metrics.Hit()
	return el.Value.(*slot[V]).entry, true
}

// Set stores entry under key, replacing whatever was there. A nil entry
// removes the key.
func (c *EntryCache[V]) Set(key string, entry *Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry == nil {
		c.removeLocked(key)
		c.reportSizeLocked()
		return
	}
	c.putLocked(key, entry)
}

// Remove deletes key and reports whether it was present
func (c *EntryCache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := c.removeLocked(key)
	c.reportSizeLocked()
	return ok
}

// Invalidate removes key and cancels its load if one is in flight
func (c *EntryCache[V]) Invalidate(key string) {
	c.mu.Lock()
	var h *Handle[V]
	if el, ok := c.items[key]; ok {
		h, _ = el.Value.(*slot[V]).entry.Handle()
		c.removeLocked(key)
		c.reportSizeLocked()
	}
	c.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
}

// GetOrStart is the atomic check-and-install used for coalescing. When key
// is present its entry is returned with started=false. Otherwise start is
// called with the lock held and its handle is installed as an in-progress
// entry before anyone else can observe the miss. The caller owns the
// handle and must eventually Settle or Abandon it.
func (c *EntryCache[V]) GetOrStart(key string, start func() *Handle[V]) (entry *Entry[V], started bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*slot[V]).entry
		c.opts.Metrics.Hit()
		if !e.IsReady() {
			c.opts.Metrics.Coalesced()
		}
		return e, false
	}

	c.opts.Metrics.Miss()
	entry = InProgress(start())
	c.putLocked(key, entry)
	return entry, true
}

// Settle replaces the in-progress entry for h with a ready value. It does
// nothing if the slot has since been overwritten or removed.
func (c *EntryCache[V]) Settle(key string, h *Handle[V], v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.holdsLocked(key, h) {
		return false
	}
	c.putLocked(key, Ready(v))
	return true
}

// Abandon removes the in-progress entry for h after a failed load. It does
// nothing if the slot has since been overwritten or removed.
func (c *EntryCache[V]) Abandon(key string, h *Handle[V]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.holdsLocked(key, h) {
		return false
	}
	c.removeLocked(key)
	c.reportSizeLocked()
	return true
}

// GetOrLoad returns the value for key, loading it with fn on a miss. All
// concurrent callers for the same key share one call to fn. The load runs
// detached from ctx so that one caller giving up does not fail the others;
// ctx only bounds how long this caller waits. On success the slot becomes
// ready, on failure it is cleared and every waiter receives the error.
func (c *EntryCache[V]) GetOrLoad(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, error) {
	entry, _ := c.GetOrStart(key, func() *Handle[V] {
		return startHandle(context.WithoutCancel(ctx), fn, func(h *Handle[V]) {
			if h.err != nil {
				c.Abandon(key, h)
				return
			}
			c.Settle(key, h, h.value)
		})
	})
	return entry.Resolve(ctx)
}

// Len returns the number of resident entries
func (c *EntryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cost returns the total cost of resident ready entries
func (c *EntryCache[V]) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// Keys returns resident keys from most to least recently used
func (c *EntryCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*slot[V]).key)
	}
	return keys
}

// Clear removes every entry. In-flight loads are left running but will no
// longer settle into the cache.
func (c *EntryCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.cost = 0
	c.reportSizeLocked()
}

func (c *EntryCache[V]) holdsLocked(key string, h *Handle[V]) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}
	cur, _ := el.Value.(*slot[V]).entry.Handle()
	return cur == h
}

func (c *EntryCache[V]) putLocked(key string, entry *Entry[V]) {
	var cost int64
	if v, ok := entry.Value(); ok && c.opts.Cost != nil {
		cost = c.opts.Cost(v)
	}

	if el, ok := c.items[key]; ok {
		s := el.Value.(*slot[V])
		c.cost += cost - s.cost
		s.entry, s.cost = entry, cost
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&slot[V]{key: key, entry: entry, cost: cost})
		c.cost += cost
	}

	c.evictLocked()
	c.reportSizeLocked()
}

func (c *EntryCache[V]) removeLocked(key string) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}
	s := el.Value.(*slot[V])
	c.cost -= s.cost
	c.order.Remove(el)
	delete(c.items, key)
	return true
}

func (c *EntryCache[V]) overLocked() (EvictReason, bool) {
	if c.opts.Capacity > 0 && len(c.items) > c.opts.Capacity {
		return EvictCapacity, true
	}
	if c.opts.MaxCost > 0 && c.cost > c.opts.MaxCost {
		return EvictCost, true
	}
	return 0, false
}

// evictLocked walks from the least recently used end and drops ready
// entries until the limits hold or only in-progress entries are left.
func (c *EntryCache[V]) evictLocked() {
	reason, over := c.overLocked()
	for el := c.order.Back(); over && el != nil; {
		prev := el.Prev()
		s := el.Value.(*slot[V])
		if v, ok := s.entry.Value(); ok {
			c.removeLocked(s.key)
			c.opts.Metrics.Evict(reason)
			if c.opts.OnEvict != nil {
				c.opts.OnEvict(s.key, v, reason)
			}
			reason, over = c.overLocked()
		}
		el = prev
	}
}

func (c *EntryCache[V]) reportSizeLocked() {
	c.opts.Metrics.Size(len(c.items), c.cost)
}
