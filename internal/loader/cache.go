package loader

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"shadowbox/internal/symbol"
)

// Entry is the cached, possibly rewritten, code of one symbol.
type Entry struct {
	Code         []byte
	Instrumented bool
	Stubbed      bool
	// Requires are loaded before the symbol is defined.
	Requires []symbol.Name
}

// CodeCache maps names to produced code for the lifetime of one loader. Each
// name is produced at most once: reads go through an RWMutex and misses are
// collapsed with singleflight. Entries are never evicted, and failed
// productions are not stored. A CodeCache must not be shared between loaders.
type CodeCache struct {
	mu      sync.RWMutex
	entries map[symbol.Name]Entry
	group   singleflight.Group
}

// NewCodeCache creates an empty cache.
func NewCodeCache() *CodeCache {
	return &CodeCache{entries: make(map[symbol.Name]Entry)}
}

// Get returns the cached entry for name.
func (c *CodeCache) Get(name symbol.Name) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// GetOrProduce returns the cached entry, calling produce on a miss. Concurrent
// callers for the same name share a single produce call. hit is true when the
// entry was already cached.
func (c *CodeCache) GetOrProduce(name symbol.Name, produce func() (Entry, error)) (e Entry, hit bool, err error) {
	if e, ok := c.Get(name); ok {
		return e, true, nil
	}

	v, err, _ := c.group.Do(string(name), func() (interface{}, error) {
		// A producer that finished between Get and Do already stored it.
		if e, ok := c.Get(name); ok {
			return e, nil
		}
		e, err := produce()
		if err != nil {
			return Entry{}, err
		}
		c.mu.Lock()
		c.entries[name] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return v.(Entry), false, nil
}

// Len returns the number of cached entries.
func (c *CodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
