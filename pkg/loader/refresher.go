package loader

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/ports"
)

// DefaultInterval is the default polling period of a Refresher.
const DefaultInterval = 5 * time.Second

// Refresher keeps the active document in sync with the source.
// It polls the loader, swaps the document when its fingerprint changes
// (last write wins) and notifies subscribers.
type Refresher struct {
	loader   *Loader
	interval time.Duration
	watch    bool
	logger   *slog.Logger

	active atomic.Pointer[domain.FlowDocument]

	mu     sync.Mutex
	nextID int
	subs   map[int]func(*domain.FlowDocument)
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithInterval sets the polling period.
func WithInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithWatch refreshes as soon as a watchable source reports a change.
func WithWatch(enabled bool) RefresherOption {
	return func(r *Refresher) {
		r.watch = enabled
	}
}

// WithRefresherLogger sets a custom structured logger.
func WithRefresherLogger(logger *slog.Logger) RefresherOption {
	return func(r *Refresher) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRefresher creates a Refresher on top of l.
func NewRefresher(l *Loader, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		loader:   l,
		interval: DefaultInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		subs:     make(map[int]func(*domain.FlowDocument)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the active document without blocking.
func (r *Refresher) Current() *domain.FlowDocument {
	if doc := r.active.Load(); doc != nil {
		return doc
	}
	return r.loader.LoadSync()
}

// Subscribe registers fn to be called with every swapped-in document.
// The returned function removes the subscription.
func (r *Refresher) Subscribe(fn func(*domain.FlowDocument)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Refresh reloads the document and swaps it in when it changed.
// It reports whether a swap happened.
func (r *Refresher) Refresh(ctx context.Context) (bool, error) {
	doc, err := r.loader.Reload(ctx)
	if err != nil {
		return false, err
	}
	return r.swap(doc), nil
}

func (r *Refresher) swap(doc *domain.FlowDocument) bool {
	old := r.active.Load()
	fp := doc.Fingerprint()
	if old != nil && old.Fingerprint() == fp {
		return false
	}
	r.active.Store(doc)
	if old != nil {
		r.logger.Info("flow swapped", "fingerprint", fp, "previous", old.Fingerprint())
	}

	r.mu.Lock()
	subs := make([]func(*domain.FlowDocument), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(doc)
	}
	return true
}

// Run refreshes once, then on every tick and source change until ctx is done.
// The watch is registered before the first refresh so no change is missed.
func (r *Refresher) Run(ctx context.Context) error {
	var changes <-chan struct{}
	if w, ok := r.loader.Source().(ports.Watchable); ok && r.watch {
		ch, err := w.Watch(ctx)
		if err != nil {
			r.logger.Warn("source watch unavailable, polling only", "err", err)
		} else {
			changes = ch
		}
	}

	if _, err := r.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("initial flow refresh failed", "err", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("flow refresh failed", "err", err)
			}
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			// The source changed, so the shared copy is stale for every replica.
			if err := r.loader.Invalidate(ctx); err != nil {
				r.logger.Warn("flow invalidation failed", "err", err)
			}
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("flow refresh failed", "err", err)
			}
		}
	}
}
