package registry

import (
	"context"
	"sync"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

// MemoryKV keeps documents in process memory with per-entry expiration.
// All methods are safe for concurrent use and nil-receiver safe: a nil
// MemoryKV never holds anything.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[bootstrap.RegistryID]Document
	now     func() time.Time
}

// NewMemoryKV returns an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[bootstrap.RegistryID]Document),
		now:     time.Now,
	}
}

// Get returns a copy of the cached document if it exists and has not expired.
func (c *MemoryKV) Get(_ context.Context, id bootstrap.RegistryID) (*Document, error) {
	if c == nil {
		return nil, ErrNotCached
	}
	c.mu.RLock()
	doc, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || !doc.Fresh(c.now()) {
		return nil, ErrNotCached
	}
	return &doc, nil
}

// Put stores a copy of doc. On a nil receiver, it is a no-op.
func (c *MemoryKV) Put(_ context.Context, doc *Document) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	c.entries[doc.ID] = *doc
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries, including expired ones.
func (c *MemoryKV) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close implements KV.
func (c *MemoryKV) Close() error { return nil }
