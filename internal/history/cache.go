// Package history remembers which commands were used most recently.
//
// The cache maps a command id to the value of a usage counter at the time
// the command was last used. Higher values are more recent. The cache is
// bounded and evicts the least recently used id first.
package history

import (
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Cache is a bounded most-recently-used map from item id to usage counter.
// It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, int64]
	capacity int
	counter  int64 // value handed to the next RecordUse
	dirty    bool
	logger   *slog.Logger
}

// NewCache returns an empty cache holding at most capacity ids.
// A capacity of 0 disables history; negative values are treated as 0.
func NewCache(capacity int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Cache{
		lru:      newLRU(capacity),
		capacity: capacity,
		counter:  1,
		logger:   logger,
	}
}

func newLRU(capacity int) *simplelru.LRU[string, int64] {
	// simplelru rejects non-positive sizes; capacity 0 is enforced by Cache.
	l, err := simplelru.NewLRU[string, int64](max(capacity, 1), nil)
	if err != nil {
		panic(err)
	}
	return l
}

// RecordUse marks id as the most recently used item.
func (c *Cache) RecordUse(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity == 0 {
		return
	}
	c.lru.Add(id, c.counter)
	c.counter++
	c.dirty = true
}

// Peek returns the usage counter for id without touching its recency.
func (c *Cache) Peek(id string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(id)
}

// Len returns the number of remembered ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the current bound.
func (c *Cache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Counter returns the value the next RecordUse will assign.
func (c *Cache) Counter() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// SetCapacity changes the bound, evicting the least recent ids if the cache
// is now over it.
func (c *Cache) SetCapacity(n int) {
	if n < 0 {
		n = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n == c.capacity {
		return
	}
	c.capacity = n
	if n == 0 {
		c.lru.Purge()
	} else {
		c.lru.Resize(n)
	}
	c.dirty = true
}

// Clear forgets every id and restarts the counter. The capacity is kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.counter = 1
	c.dirty = true
}

// Entries returns the remembered ids, most recent first.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	keys := c.lru.Keys()
	out := make([]Entry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		v, _ := c.lru.Peek(keys[i])
		out = append(out, Entry{Key: keys[i], Value: v})
	}
	c.mu.Unlock()
	return out
}

// Dirty reports whether the cache changed since the last Load or Save.
func (c *Cache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Snapshot exports the cache in lru order, least recent first.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	keys := c.lru.Keys()
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, _ := c.lru.Peek(k)
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return Snapshot{SchemaKind: SchemaKindLRU, Entries: entries}
}

// Save returns a snapshot and the counter to persist alongside it. ok is
// false when nothing changed since the last Load or Save, in which case
// nothing needs to be written.
func (c *Cache) Save() (snap Snapshot, counter int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return Snapshot{}, 0, false
	}
	c.dirty = false
	return c.snapshotLocked(), c.counter, true
}

// MarkDirty forces the next Save to write. Used when a write failed.
func (c *Cache) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Load replaces the cache contents with a serialized snapshot. counter is
// the persisted next-counter value, or 0 if none was stored. Unreadable
// data leaves the cache empty and is logged, never returned.
func (c *Cache) Load(data []byte, counter int64) {
	snap, err := ParseSnapshot(data)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.counter = 1
	c.dirty = false

	if err != nil {
		c.logger.Error("discarding unreadable command history", "error", err)
		return
	}

	var highest int64
	if c.capacity > 0 {
		for _, e := range snap.replayOrder() {
			c.lru.Add(e.Key, e.Value)
		}
	}
	for _, k := range c.lru.Keys() {
		if v, _ := c.lru.Peek(k); v > highest {
			highest = v
		}
	}

	// The counter must stay ahead of every stored value or new uses would
	// sort behind old ones.
	c.counter = max(counter, highest+1, 1)
}
