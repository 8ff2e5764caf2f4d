// Package metrics exposes kiosk activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aretw0/kiosk/pkg/domain"
	"github.com/aretw0/kiosk/pkg/loader"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "kiosk"

// Collector owns the kiosk metrics of one registry.
type Collector struct {
	registry *prometheus.Registry

	nodeVisits      *prometheus.CounterVec
	matches         *prometheus.CounterVec
	matchConfidence *prometheus.HistogramVec
	reroots         *prometheus.CounterVec

	flowLoads    *prometheus.CounterVec
	flowLoadTime *prometheus.HistogramVec
	flowSwaps    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector registers the kiosk metrics, plus the Go and process
// collectors, on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		nodeVisits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits",
		}, []string{"language", "node_id"}),
		matches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "intent_matches_total",
			Help:      "Free-text matches by confidence band",
		}, []string{"language", "kind"}),
		matchConfidence: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "intent_confidence",
			Help:      "Confidence of matched choices",
			Buckets:   []float64{0.25, 0.35, 0.5, 0.65, 0.75, 0.9, 1},
		}, []string{"language"}),
		reroots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "conversation_reroots_total",
			Help:      "Conversations moved back to the entry node after a flow swap",
		}, []string{"language"}),
		flowLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flow_loads_total",
			Help:      "Flow loads by outcome",
		}, []string{"outcome"}),
		flowLoadTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "flow_load_duration_seconds",
			Help:      "Flow load duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"outcome"}),
		flowSwaps: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flow_swaps_total",
			Help:      "Published flow documents with a new fingerprint",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// EngineHooks returns lifecycle hooks that record engine activity.
// next, if non-nil, is called after recording.
func (c *Collector) EngineHooks(next domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			c.nodeVisits.WithLabelValues(e.Language, e.NodeID).Inc()
			if next.OnNodeEnter != nil {
				next.OnNodeEnter(ctx, e)
			}
		},
		OnNodeLeave: next.OnNodeLeave,
		OnMatch: func(ctx context.Context, e *domain.MatchEvent) {
			c.matches.WithLabelValues(e.Language, string(e.Kind)).Inc()
			if e.Kind != domain.MatchNone {
				c.matchConfidence.WithLabelValues(e.Language).Observe(e.Confidence)
			}
			if next.OnMatch != nil {
				next.OnMatch(ctx, e)
			}
		},
		OnReroot: func(ctx context.Context, e *domain.RerootEvent) {
			c.reroots.WithLabelValues(e.Language).Inc()
			if next.OnReroot != nil {
				next.OnReroot(ctx, e)
			}
		},
	}
}

// LoaderHooks returns hooks that record flow loads.
func (c *Collector) LoaderHooks() loader.Hooks {
	return loader.Hooks{
		OnLoad: func(_ context.Context, ev loader.LoadEvent) {
			outcome := string(ev.Outcome)
			c.flowLoads.WithLabelValues(outcome).Inc()
			c.flowLoadTime.WithLabelValues(outcome).Observe(ev.Duration.Seconds())
		},
	}
}

// ObserveSwap counts a published flow document.
func (c *Collector) ObserveSwap(*domain.FlowDocument) {
	c.flowSwaps.Inc()
}

// Middleware records request counts and latency by chi route pattern, so
// path parameters do not explode the label space.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
