package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	kioskhttp "github.com/aretw0/kiosk/pkg/adapters/http"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const ShutdownTimeout = 5 * time.Second

// NewServer builds the HTTP API of app.
func NewServer(app *App) *kioskhttp.Server {
	opts := []kioskhttp.Option{
		kioskhttp.WithMetrics(app.Metrics),
		kioskhttp.WithCORSOrigins(app.Config.Server.CORSOrigins),
		kioskhttp.WithDefaultLanguage(app.Config.Flow.DefaultLanguage),
		kioskhttp.WithLogger(app.Logger),
	}
	if app.Config.Management.Enabled {
		opts = append(opts, kioskhttp.WithAdmin(app.Kiosk.Loader()))
	}
	return kioskhttp.NewServer(app.Kiosk.Engine(), app.Kiosk.Refresher(), opts...)
}

// RunServe serves the HTTP API and keeps the flow refreshed until ctx is done,
// then shuts the server down gracefully. ready, if non-nil, receives the bound
// address once the listener is open.
func RunServe(ctx context.Context, app *App, ready func(addr string)) error {
	ln, err := net.Listen("tcp", app.Config.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", app.Config.Server.Addr, err)
	}

	srv := &http.Server{
		Handler:     NewServer(app).Handler(),
		ReadTimeout: app.Config.Server.ReadTimeout,
		// No write timeout: event streams stay open for the life of the
		// client and end with ctx.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Kiosk.Run(gctx) })
	g.Go(func() error {
		app.Logger.Info("kiosk server listening",
			"addr", ln.Addr().String(),
			"source", describeSource(app.Config.Flow.Source),
			"management", app.Config.Management.Enabled,
		)
		if ready != nil {
			ready(ln.Addr().String())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
			return srv.Close()
		}
		app.Logger.Info("kiosk server stopped gracefully")
		return nil
	})
	return g.Wait()
}
