// Package rowcache bounds how many rows stay finalized (cloud synchronized)
// at once.
package rowcache

import (
	"container/list"
	"log/slog"
	"sync"

	"github.com/maruel/viewdb/internal/model"
)

// DefaultCapacity is the number of finalized rows kept by default.
const DefaultCapacity = 50

// Handle is the part of a live row the cache needs on eviction.
type Handle interface {
	HasCloudSync() bool
	DeactivateCloudSync()
}

// Lookup resolves a row ID to its live handle. It returns false once the
// row has been released by its owner; the cache never keeps rows alive.
type Lookup func(id model.RowID) (Handle, bool)

// Cache handles the set of finalized rows in least recently used order.
//
// Eviction, whether from overflow or invalidation, deactivates cloud sync of
// the evicted row exactly once, outside the cache lock. Until deactivation
// completes, Contains, Insert and Invalidate of that row wait for it.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	entries  map[model.RowID]*list.Element
	evicting map[model.RowID]chan struct{}
	lookup   Lookup
}

// New initializes a cache holding up to capacity rows.
func New(capacity int, lookup Lookup) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[model.RowID]*list.Element),
		evicting: make(map[model.RowID]chan struct{}),
		lookup:   lookup,
	}
}

// Contains reports whether the row is cached and marks it recently used.
func (c *Cache) Contains(id model.RowID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitEvictedLocked(id)
	e, ok := c.entries[id]
	if ok {
		c.order.MoveToFront(e)
	}
	return ok
}

// Insert caches a row, evicting the least recently used one when full.
func (c *Cache) Insert(id model.RowID) {
	c.mu.Lock()
	c.waitEvictedLocked(id)
	if e, ok := c.entries[id]; ok {
		c.order.MoveToFront(e)
		c.mu.Unlock()
		return
	}
	c.entries[id] = c.order.PushFront(id)
	var evicted []model.RowID
	for c.order.Len() > c.capacity {
		evicted = append(evicted, c.removeLocked(c.order.Back()))
	}
	c.mu.Unlock()
	c.evict(evicted)
}

// Invalidate removes a row from the cache.
func (c *Cache) Invalidate(id model.RowID) {
	c.mu.Lock()
	c.waitEvictedLocked(id)
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.removeLocked(e)
	c.mu.Unlock()
	c.evict([]model.RowID{id})
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	evicted := make([]model.RowID, 0, len(c.entries))
	for e := c.order.Back(); e != nil; e = c.order.Back() {
		evicted = append(evicted, c.removeLocked(e))
	}
	c.mu.Unlock()
	c.evict(evicted)
}

// Len returns the number of cached rows.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cached rows, most recently used first.
func (c *Cache) Keys() []model.RowID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.RowID, 0, len(c.entries))
	for e := c.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(model.RowID))
	}
	return out
}

// removeLocked drops the entry and marks the row as evicting. evict must
// be called for the returned ID.
func (c *Cache) removeLocked(e *list.Element) model.RowID {
	id := c.order.Remove(e).(model.RowID)
	delete(c.entries, id)
	c.evicting[id] = make(chan struct{})
	return id
}

// waitEvictedLocked blocks until no eviction of id is in progress. c.mu is
// held on entry and on return.
func (c *Cache) waitEvictedLocked(id model.RowID) {
	for {
		done, ok := c.evicting[id]
		if !ok {
			return
		}
		c.mu.Unlock()
		<-done
		c.mu.Lock()
	}
}

// evict deactivates cloud sync of rows that are still live.
func (c *Cache) evict(ids []model.RowID) {
	for _, id := range ids {
		if h, ok := c.lookup(id); ok && h.HasCloudSync() {
			h.DeactivateCloudSync()
			slog.Debug("Unfinalized row", "row_id", id)
		}
		c.mu.Lock()
		close(c.evicting[id])
		delete(c.evicting, id)
		c.mu.Unlock()
	}
}
