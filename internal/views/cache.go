package views

import (
	"sync"

	"github.com/noticing/internal/events"
)

// Notifier publishes staleness events to live subscribers.
type Notifier interface {
	SendEvent(eventType events.EventType, path string)
}

// Generation identifies the state of a path at the time of a cache miss.
// A rendering is only stored if the path has not been invalidated since.
type Generation uint64

// Cache holds rendered pages per path. Within a path, entries are keyed by
// whatever the page varies on (user, day).
type Cache struct {
	mu          sync.RWMutex
	pages       map[string]map[string][]byte
	generations map[string]Generation
	notifier    Notifier
}

func NewCache(notifier Notifier) *Cache {
	return &Cache{
		pages:       make(map[string]map[string][]byte),
		generations: make(map[string]Generation),
		notifier:    notifier,
	}
}

// Get returns the cached rendering of path for key. On a miss the returned
// generation must be handed back to Put.
func (c *Cache) Get(path, key string) ([]byte, Generation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	page, ok := c.pages[path][key]
	return page, c.generations[path], ok
}

// Put stores a rendering of path for key, unless path was invalidated after
// gen was read. It reports whether the page was stored.
func (c *Cache) Put(path, key string, gen Generation, page []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[path] != gen {
		return false
	}
	byKey, ok := c.pages[path]
	if !ok {
		byKey = make(map[string][]byte)
		c.pages[path] = byKey
	}
	byKey[key] = page
	return true
}

// Invalidate drops every cached rendering of path and tells subscribers.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.pages, path)
	c.generations[path]++
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.SendEvent(events.EventViewStale, path)
	}
}
