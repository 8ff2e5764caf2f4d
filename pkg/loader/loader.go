package loader

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/kiosk/internal/validator"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/aretw0/kiosk/pkg/ports"
	"golang.org/x/sync/singleflight"
)

// Outcome classifies how a Load resolved its document.
type Outcome string

const (
	OutcomeCache     Outcome = "cache"     // local cache hit
	OutcomeShared    Outcome = "shared"    // shared cache hit
	OutcomeConverted Outcome = "converted" // fresh conversion
	OutcomeFallback  Outcome = "fallback"  // built-in document
)

// LoadEvent describes one resolved Load.
type LoadEvent struct {
	Outcome     Outcome
	Fingerprint string
	Duration    time.Duration
	// Err is the failure that caused a fallback, if any.
	Err error
}

// Hooks observe the loader.
type Hooks struct {
	OnLoad func(ctx context.Context, ev LoadEvent)
}

// LocalConverter decodes raw documents without any external service.
func LocalConverter() ports.Converter {
	return ports.ConverterFunc(func(_ context.Context, raw map[string]any) (*domain.FlowDocument, error) {
		return flow.Decode(raw)
	})
}

// Loader resolves the active FlowDocument.
//
// It is the single writer of the cached document: concurrent loads collapse
// into one conversion, and with a shared cache plus a locker a single replica
// converts while the others read its result.
type Loader struct {
	source    ports.Source
	converter ports.Converter
	shared    ports.FlowCache
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	entry     string
	hooks     Hooks
	logger    *slog.Logger

	current atomic.Pointer[domain.FlowDocument]
	group   singleflight.Group

	// Last converted source, so unchanged bytes are not converted again.
	mu      sync.Mutex
	rawHash [sha256.Size]byte
	rawDoc  *domain.FlowDocument
}

// Option defines a functional option for configuring the Loader.
type Option func(*Loader)

// WithConverter replaces the local converter.
func WithConverter(c ports.Converter) Option {
	return func(l *Loader) {
		if c != nil {
			l.converter = c
		}
	}
}

// WithSharedCache adds a cache shared between replicas (e.g. Redis).
func WithSharedCache(c ports.FlowCache) Option {
	return func(l *Loader) {
		l.shared = c
	}
}

// WithLocker serializes conversions across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(l *Loader) {
		l.locker = locker
		if ttl > 0 {
			l.lockTTL = ttl
		}
	}
}

// WithEntryNode sets the node every language must start from (default: "start").
func WithEntryNode(id string) Option {
	return func(l *Loader) {
		if id != "" {
			l.entry = id
		}
	}
}

// WithHooks registers observability hooks.
func WithHooks(h Hooks) Option {
	return func(l *Loader) {
		l.hooks = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader for source. A nil source always yields the fallback.
func New(source ports.Source, opts ...Option) *Loader {
	l := &Loader{
		source:    source,
		converter: LocalConverter(),
		lockTTL:   30 * time.Second,
		entry:     domain.EntryNodeID,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source returns the configured source.
func (l *Loader) Source() ports.Source {
	return l.source
}

// LoadSync returns the cached document, or the built-in fallback when nothing
// is cached yet. It performs no I/O.
func (l *Loader) LoadSync() *domain.FlowDocument {
	if doc := l.current.Load(); doc != nil {
		return doc
	}
	return flow.Fallback()
}

// Load returns the cached document or derives a new one.
// Every failure except cancellation resolves to the fallback document.
func (l *Loader) Load(ctx context.Context) (*domain.FlowDocument, error) {
	if doc := l.current.Load(); doc != nil {
		l.emit(ctx, LoadEvent{Outcome: OutcomeCache, Fingerprint: doc.Fingerprint()})
		return doc, nil
	}

	v, err, _ := l.group.Do("load", func() (any, error) {
		// Another caller may have finished while we were queued.
		if doc := l.current.Load(); doc != nil {
			return doc, nil
		}
		doc, err := l.resolve(ctx)
		if err != nil {
			return nil, err
		}
		l.current.Store(doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.FlowDocument), nil
}

// Invalidate clears the local and shared caches so the next Load re-derives.
func (l *Loader) Invalidate(ctx context.Context) error {
	l.current.Store(nil)
	l.mu.Lock()
	l.rawDoc = nil
	l.mu.Unlock()
	if l.shared != nil {
		if err := l.shared.Clear(ctx); err != nil {
			return fmt.Errorf("clear shared flow cache: %w", err)
		}
	}
	l.logger.Info("flow cache invalidated")
	return nil
}

// Reload invalidates the local cache and loads again.
// The shared cache is left alone, so replicas pick up each other's conversions.
func (l *Loader) Reload(ctx context.Context) (*domain.FlowDocument, error) {
	l.current.Store(nil)
	return l.Load(ctx)
}

func (l *Loader) resolve(ctx context.Context) (*domain.FlowDocument, error) {
	start := time.Now()

	if doc, ok := l.fromShared(ctx); ok {
		l.emit(ctx, LoadEvent{Outcome: OutcomeShared, Fingerprint: doc.Fingerprint(), Duration: time.Since(start)})
		return doc, nil
	}

	if l.locker != nil && l.shared != nil {
		unlock, err := l.locker.Lock(ctx, "flow-conversion", l.lockTTL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return l.fallback(ctx, start, fmt.Errorf("acquire conversion lock: %w", err))
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				l.logger.Warn("failed to release conversion lock", "err", err)
			}
		}()
		// The lock holder before us may have filled the cache.
		if doc, ok := l.fromShared(ctx); ok {
			l.emit(ctx, LoadEvent{Outcome: OutcomeShared, Fingerprint: doc.Fingerprint(), Duration: time.Since(start)})
			return doc, nil
		}
	}

	doc, err := l.convert(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return l.fallback(ctx, start, err)
	}

	if l.shared != nil {
		if err := l.shared.Set(ctx, doc); err != nil {
			l.logger.Warn("failed to publish flow to shared cache", "err", err)
		}
	}
	fp := doc.Fingerprint()
	l.logger.Info("flow loaded", "fingerprint", fp, "languages", doc.LanguageCodes(), "duration", time.Since(start))
	l.emit(ctx, LoadEvent{Outcome: OutcomeConverted, Fingerprint: fp, Duration: time.Since(start)})
	return doc, nil
}

func (l *Loader) fromShared(ctx context.Context) (*domain.FlowDocument, bool) {
	if l.shared == nil {
		return nil, false
	}
	doc, err := l.shared.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			l.logger.Warn("shared flow cache unavailable", "err", err)
		}
		return nil, false
	}
	// A replica running another version may have cached an invalid document.
	if err := validator.ValidateDocument(doc, l.entry); err != nil {
		l.logger.Warn("ignoring invalid shared flow", "err", err)
		return nil, false
	}
	return doc, true
}

func (l *Loader) convert(ctx context.Context) (*domain.FlowDocument, error) {
	if l.source == nil {
		return nil, errors.New("no flow source configured")
	}
	data, err := l.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch flow source: %w", err)
	}
	sum := sha256.Sum256(data)
	l.mu.Lock()
	if l.rawDoc != nil && l.rawHash == sum {
		doc := l.rawDoc
		l.mu.Unlock()
		return doc, nil
	}
	l.mu.Unlock()

	raw, err := flow.Parse(data)
	if err != nil {
		return nil, err
	}
	doc, err := l.converter.Convert(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("convert flow: %w", err)
	}
	if doc == nil {
		return nil, errors.New("convert flow: converter returned no document")
	}
	if err := validator.ValidateDocument(doc, l.entry); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.rawHash, l.rawDoc = sum, doc
	l.mu.Unlock()
	return doc, nil
}

func (l *Loader) fallback(ctx context.Context, start time.Time, cause error) (*domain.FlowDocument, error) {
	doc := flow.Fallback()
	fp := doc.Fingerprint()
	l.logger.Warn("flow conversion failed, using built-in flow", "err", cause, "fingerprint", fp)
	l.emit(ctx, LoadEvent{Outcome: OutcomeFallback, Fingerprint: fp, Duration: time.Since(start), Err: cause})
	return doc, nil
}

func (l *Loader) emit(ctx context.Context, ev LoadEvent) {
	if l.hooks.OnLoad != nil {
		l.hooks.OnLoad(ctx, ev)
	}
}
