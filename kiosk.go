package kiosk

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/kiosk/internal/runtime"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/intent"
	"github.com/aretw0/kiosk/pkg/loader"
	"github.com/aretw0/kiosk/pkg/ports"
	"github.com/aretw0/kiosk/pkg/session"
)

// Kiosk is the high-level entry point of the library.
// It wires a flow source to a loader, a refresher and a conversation engine.
type Kiosk struct {
	engine    *runtime.Engine
	loader    *loader.Loader
	refresher *loader.Refresher
	logger    *slog.Logger
}

type options struct {
	logger        *slog.Logger
	entryNode     string
	high, low     float64
	hooks         domain.LifecycleHooks
	engineOpts    []runtime.EngineOption
	loaderOpts    []loader.Option
	refresherOpts []loader.RefresherOption
}

// Option defines a functional option for configuring a Kiosk.
type Option func(*options)

// WithLogger sets a custom structured logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on the engine.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithLoadHooks registers hooks called after every flow load.
func WithLoadHooks(hooks loader.Hooks) Option {
	return func(o *options) {
		o.loaderOpts = append(o.loaderOpts, loader.WithHooks(hooks))
	}
}

// WithEntryNode configures the initial node ID (default: "start").
func WithEntryNode(nodeID string) Option {
	return func(o *options) {
		o.entryNode = nodeID
	}
}

// WithThresholds sets the matcher confidence bands.
func WithThresholds(high, low float64) Option {
	return func(o *options) {
		o.high, o.low = high, low
	}
}

// WithConverter replaces the local raw-document normalizer.
func WithConverter(c ports.Converter) Option {
	return func(o *options) {
		o.loaderOpts = append(o.loaderOpts, loader.WithConverter(c))
	}
}

// WithSharedCache shares converted documents between replicas. locker may be
// nil; when set, a single replica converts at a time.
func WithSharedCache(cache ports.FlowCache, locker ports.DistributedLocker, lockTTL time.Duration) Option {
	return func(o *options) {
		o.loaderOpts = append(o.loaderOpts, loader.WithSharedCache(cache))
		if locker != nil {
			o.loaderOpts = append(o.loaderOpts, loader.WithLocker(locker, lockTTL))
		}
	}
}

// WithRefreshInterval sets how often the source is polled.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		o.refresherOpts = append(o.refresherOpts, loader.WithInterval(d))
	}
}

// WithWatch refreshes as soon as a watchable source changes.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.refresherOpts = append(o.refresherOpts, loader.WithWatch(enabled))
	}
}

// WithMessages replaces the localized system messages.
func WithMessages(c runtime.Catalog) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, runtime.WithMessages(c))
	}
}

// New creates a Kiosk reading its flow from source.
// A nil source serves the built-in flow.
func New(source ports.Source, opts ...Option) *Kiosk {
	o := options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		entryNode: domain.EntryNodeID,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var matcherOpts []intent.Option
	if o.high > 0 && o.low > 0 {
		matcherOpts = append(matcherOpts, intent.WithThresholds(o.high, o.low))
	}

	engineOpts := append([]runtime.EngineOption{
		runtime.WithLogger(o.logger),
		runtime.WithEntryNode(o.entryNode),
		runtime.WithMatcher(intent.New(matcherOpts...)),
		runtime.WithLifecycleHooks(o.hooks),
	}, o.engineOpts...)

	l := loader.New(source, append([]loader.Option{
		loader.WithLogger(o.logger),
		loader.WithEntryNode(o.entryNode),
	}, o.loaderOpts...)...)

	return &Kiosk{
		engine: runtime.NewEngine(engineOpts...),
		loader: l,
		refresher: loader.NewRefresher(l, append([]loader.RefresherOption{
			loader.WithRefresherLogger(o.logger),
		}, o.refresherOpts...)...),
		logger: o.logger,
	}
}

// Engine returns the conversation engine.
func (k *Kiosk) Engine() *runtime.Engine { return k.engine }

// Loader returns the flow loader.
func (k *Kiosk) Loader() *loader.Loader { return k.loader }

// Refresher returns the refresher publishing the active document.
func (k *Kiosk) Refresher() *loader.Refresher { return k.refresher }

// Document returns the active flow document without blocking.
func (k *Kiosk) Document() *domain.FlowDocument { return k.refresher.Current() }

// Refresh loads the source once and publishes the result.
func (k *Kiosk) Refresh(ctx context.Context) (bool, error) {
	return k.refresher.Refresh(ctx)
}

// Run keeps the active document in sync with the source until ctx is done.
func (k *Kiosk) Run(ctx context.Context) error {
	return k.refresher.Run(ctx)
}

// NewSession starts a conversation on the active document.
func (k *Kiosk) NewSession(ctx context.Context, language string, opts ...session.Option) (*session.Session, error) {
	return session.New(ctx, k.engine, k.Document(), language, opts...)
}

// Follow swaps every newly published document into s until the returned
// function is called.
func (k *Kiosk) Follow(ctx context.Context, s *session.Session) (stop func()) {
	return k.refresher.Subscribe(func(doc *domain.FlowDocument) {
		changed, err := s.SwapDocument(ctx, doc)
		if err != nil {
			k.logger.Warn("flow swap skipped", "conversation_id", s.ID(), "err", err)
			return
		}
		if changed {
			k.logger.Info("conversation moved after flow swap", "conversation_id", s.ID())
		}
	})
}
