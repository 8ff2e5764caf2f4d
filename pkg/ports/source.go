package ports

import "context"

// Source supplies the raw flow document.
type Source interface {
	// Fetch returns the current raw bytes (JSON or YAML).
	Fetch(ctx context.Context) ([]byte, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is used to trigger a refresh before the next polling tick.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying document changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// WritableSource accepts a replacement raw document.
// Used by the management endpoint.
type WritableSource interface {
	Source
	Write(ctx context.Context, data []byte) error
}
