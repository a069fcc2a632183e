package content

import (
	"sync"
)

// RenderedPost is the cached outcome of parsing and rendering one source.
// Entries are never mutated after Put.
type RenderedPost struct {
	Slug        string
	Meta        Metadata
	HTML        string
	CSS         string
	Fingerprint uint64
}

// RenderCache maps slugs to their last rendering. A hit requires the caller's
// fingerprint to match the stored one, concurrent writers for a slug race and the last one wins.
type RenderCache struct {
	mu      sync.RWMutex
	entries map[string]*RenderedPost
}

func NewRenderCache() *RenderCache {
	return &RenderCache{entries: make(map[string]*RenderedPost)}
}

// Get returns the entry for slug if it was rendered from a source with the same fingerprint
func (c *RenderCache) Get(slug string, fingerprint uint64) (*RenderedPost, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[slug]
	if !ok || entry.Fingerprint != fingerprint {
		return nil, false
	}
	return entry, true
}

// Put stores entry, replacing whatever was cached for the same slug
func (c *RenderCache) Put(entry *RenderedPost) {
	c.mu.Lock()
	c.entries[entry.Slug] = entry
	c.mu.Unlock()
}

func (c *RenderCache) Invalidate(slug string) {
	c.mu.Lock()
	delete(c.entries, slug)
	c.mu.Unlock()
}

// Purge drops every entry
func (c *RenderCache) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

func (c *RenderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
