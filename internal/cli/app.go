// Package cli wires the configuration to the kiosk components and implements
// the behavior of the kiosk subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/kiosk"
	"github.com/aretw0/kiosk/internal/config"
	"github.com/aretw0/kiosk/internal/logging"
	"github.com/aretw0/kiosk/internal/metrics"
	"github.com/aretw0/kiosk/pkg/adapters/file"
	"github.com/aretw0/kiosk/pkg/adapters/httpsource"
	"github.com/aretw0/kiosk/pkg/adapters/memory"
	"github.com/aretw0/kiosk/pkg/adapters/openai"
	"github.com/aretw0/kiosk/pkg/adapters/redis"
	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/flow"
	"github.com/aretw0/kiosk/pkg/ports"
)

// App holds the components built from one configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Kiosk   *kiosk.Kiosk

	closers []func() error
}

// NewLogger builds the application logger for a configured level.
func NewLogger(level string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// Build creates the source, converter, caches and engine described by cfg.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	}

	opts := []kiosk.Option{
		kiosk.WithLogger(logger),
		kiosk.WithEntryNode(cfg.Flow.EntryNode),
		kiosk.WithThresholds(cfg.Matcher.High, cfg.Matcher.Low),
		kiosk.WithLifecycleHooks(app.Metrics.EngineHooks(debugHooks(logger))),
		kiosk.WithLoadHooks(app.Metrics.LoaderHooks()),
		kiosk.WithRefreshInterval(cfg.Flow.RefreshInterval),
		kiosk.WithWatch(cfg.Flow.Watch),
	}

	if cfg.Converter.Kind == config.ConverterOpenAI {
		opts = append(opts, kiosk.WithConverter(openai.New(
			openai.WithAPIKey(cfg.Converter.APIKey),
			openai.WithBaseURL(cfg.Converter.BaseURL),
			openai.WithModel(cfg.Converter.Model),
			openai.WithRate(cfg.Converter.Rate),
			openai.WithTimeout(cfg.Converter.Timeout),
			openai.WithLogger(logger),
		)))
	}

	// The memory backend is the loader's own in-process cache; only redis is
	// shared between replicas.
	if cfg.Cache.Backend == config.CacheRedis {
		rc := cfg.Cache.Redis
		cache := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		locker := redis.NewLocker(cache.Client(), rc.Prefix)
		opts = append(opts, kiosk.WithSharedCache(cache, locker, cfg.Cache.LockTTL))
		app.closers = append(app.closers, cache.Close)
	}

	app.Kiosk = kiosk.New(NewSource(cfg.Flow.Source, logger), opts...)
	app.Kiosk.Refresher().Subscribe(app.Metrics.ObserveSwap)
	logger.Debug("kiosk assembled",
		"source", describeSource(cfg.Flow.Source),
		"cache", cfg.Cache.Backend,
		"converter", cfg.Converter.Kind,
	)
	return app, nil
}

// NewSource picks the source adapter for a configured location.
// An empty location serves the built-in flow from memory, so the
// management endpoint can still replace it.
func NewSource(location string, logger *slog.Logger) ports.Source {
	switch {
	case location == "":
		return memory.NewSource(flow.FallbackSource())
	case config.IsURL(location):
		return httpsource.New(location)
	default:
		return file.New(location, file.WithLogger(logger))
	}
}

func describeSource(location string) string {
	if location == "" {
		return "built-in"
	}
	return location
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prime performs the first load so the initial document is the configured one
// instead of the fallback.
func (a *App) Prime(ctx context.Context) error {
	if _, err := a.Kiosk.Refresh(ctx); err != nil {
		return fmt.Errorf("initial flow load: %w", err)
	}
	return nil
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("Enter Node", "node_id", e.NodeID, "type", e.NodeType, "conversation_id", e.ConversationID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("Leave Node", "node_id", e.NodeID)
		},
		OnMatch: func(ctx context.Context, e *domain.MatchEvent) {
			logger.Debug("Intent Match", "node_id", e.NodeID, "kind", e.Kind, "choice", e.ChoiceID, "confidence", e.Confidence)
		},
		OnReroot: func(ctx context.Context, e *domain.RerootEvent) {
			logger.Info("Conversation Re-rooted", "from", e.FromNodeID, "to", e.ToNodeID)
		},
	}
}
