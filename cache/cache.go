// Package cache implements the bounded LRU of decompressed frames used by
// the reader. A capacity of zero disables caching entirely; callers check
// Enabled() and bypass the cache rather than calling into a zero-capacity
// instance.
//
// Find may run concurrently with other Find calls (the underlying
// golang-lru cache locks internally, and the reader calls Find under its
// shared lock). The reader holds its exclusive lock around the
// re-check-then-Insert step, so a frame is decoded and inserted once.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
)

// Frame is an owned, decompressed frame's payload.
type Frame struct {
	Index uint32
	Data  []byte
}

// Cache is a bounded, associative LRU keyed by frame index. Insertion order
// determines eviction among entries that have never been looked up; a
// successful Find promotes its entry to most-recently-used.
type Cache struct {
	capacity int
	inner    *lru.Cache[uint32, []byte]
	bytes    atomic.Int64
}

// New returns a Cache holding at most capacity frames. capacity == 0 yields
// a disabled cache (Enabled() reports false; Find/Insert are no-ops).
func New(capacity int) *Cache {
	c := &Cache{capacity: capacity}
	if capacity <= 0 {
		return c
	}

	inner, err := lru.NewWithEvict[uint32, []byte](capacity, func(_ uint32, data []byte) {
		c.bytes.Sub(int64(len(data)))
	})
	if err != nil {
		// Only returns an error for capacity <= 0, already excluded above.
		panic(err)
	}
	c.inner = inner
	return c
}

// Enabled reports whether this cache actually retains anything.
func (c *Cache) Enabled() bool {
	return c != nil && c.inner != nil
}

// Find looks up a frame by index. A hit promotes the entry to
// most-recently-used.
func (c *Cache) Find(index uint32) (data []byte, ok bool) {
	if !c.Enabled() {
		return nil, false
	}
	return c.inner.Get(index)
}

// Insert adds a frame to the cache, taking ownership of its data. It fails
// (returns false, data not retained) if an entry with the same index is
// already present — callers must find-then-insert under an exclusive lock,
// re-checking Find first after acquiring it, since another goroutine may
// have inserted the same index while the lock was briefly released. On
// success, if the cache is at capacity the least-recently-used entry is
// evicted first.
func (c *Cache) Insert(f Frame) bool {
	if !c.Enabled() {
		return false
	}
	if c.inner.Contains(f.Index) {
		return false
	}
	c.inner.Add(f.Index, f.Data)
	c.bytes.Add(int64(len(f.Data)))
	return true
}

// MemoryUsage returns the total number of bytes currently owned by cached
// frames.
func (c *Cache) MemoryUsage() int64 {
	if !c.Enabled() {
		return 0
	}
	return c.bytes.Load()
}

// Entries returns the number of frames currently cached.
func (c *Cache) Entries() int {
	if !c.Enabled() {
		return 0
	}
	return c.inner.Len()
}
