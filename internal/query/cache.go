package query

import (
	"runtime"
	"sync"
	"weak"
)

// cache memoizes translations by *Filter identity. Keys are weak, so an
// entry never keeps its filter alive; the entry is dropped once the filter
// has been collected.
type cache struct {
	mu      sync.Mutex
	entries map[weak.Pointer[Filter]]*Bool
}

func newCache() *cache {
	return &cache{entries: make(map[weak.Pointer[Filter]]*Bool)}
}

func (c *cache) get(f *Filter) (*Bool, bool) {
	key := weak.Make(f)
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[key]
	return b, ok
}

func (c *cache) put(f *Filter, b *Bool) {
	key := weak.Make(f)
	c.mu.Lock()
	_, exists := c.entries[key]
	c.entries[key] = b
	c.mu.Unlock()

	if !exists {
		runtime.AddCleanup(f, c.evict, key)
	}
}

func (c *cache) evict(key weak.Pointer[Filter]) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
