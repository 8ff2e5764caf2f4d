package memory

import (
	"context"
	"sync"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
)

// Cache implements ports.FlowCache in memory.
// Safe for concurrent use.
type Cache struct {
	doc *domain.FlowDocument
	mu  sync.RWMutex
}

// NewCache creates an empty in-memory cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns a copy of the cached document.
func (c *Cache) Get(ctx context.Context) (*domain.FlowDocument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.doc == nil {
		return nil, domain.ErrCacheMiss
	}
	// Copy on read so callers can't mutate the cached document by pointer.
	return flow.Clone(c.doc), nil
}

// Set stores a copy of doc.
func (c *Cache) Set(ctx context.Context, doc *domain.FlowDocument) error {
	copied := flow.Clone(doc)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = copied
	return nil
}

// Clear empties the cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = nil
	return nil
}
