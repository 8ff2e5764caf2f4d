package ports

import (
	"context"

	"github.com/aretw0/kiosk/pkg/domain"
)

// FlowCache stores the converted flow document so that conversion runs once
// per change rather than once per process.
type FlowCache interface {
	// Get returns the cached document.
	// Returns domain.ErrCacheMiss if the cache is empty.
	Get(ctx context.Context) (*domain.FlowDocument, error)

	// Set replaces the cached document.
	Set(ctx context.Context, doc *domain.FlowDocument) error

	// Clear empties the cache. Clearing an empty cache is not an error.
	Clear(ctx context.Context) error
}
