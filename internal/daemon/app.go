// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/msgbus/internal/config"
	"github.com/ManuGH/msgbus/internal/eventbus"
	xglog "github.com/ManuGH/msgbus/internal/log"
)

// App owns the long-lived runtime lifecycle: the debug HTTP server, the
// config watcher and the SIGHUP reload trigger.
//
// The bus holds subscribers weakly, so App keeps strong references to the
// subscribers it registers for as long as it runs.
type App struct {
	logger       zerolog.Logger
	bus          *eventbus.Bus
	cfgHolder    *config.Holder
	handler      http.Handler
	listenAddr   string
	reloadSignal os.Signal

	subscribers []any
	closers     []func(context.Context) error

	// ready is closed once the listener is bound; addr holds its address.
	ready chan struct{}
	addr  net.Addr
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, bus *eventbus.Bus, cfgHolder *config.Holder, handler http.Handler, listenAddr string) (*App, error) {
	if bus == nil {
		return nil, ErrMissingBus
	}
	if handler == nil {
		return nil, ErrMissingHandler
	}
	return &App{
		logger:       logger,
		bus:          bus,
		cfgHolder:    cfgHolder,
		handler:      handler,
		listenAddr:   listenAddr,
		reloadSignal: syscall.SIGHUP,
		ready:        make(chan struct{}),
	}, nil
}

// Keep retains subscribers for the lifetime of the App.
func (a *App) Keep(subscribers ...any) {
	a.subscribers = append(a.subscribers, subscribers...)
}

// OnShutdown registers fn to run after the server stopped, in reverse order.
func (a *App) OnShutdown(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Addr returns the bound listener address once the server is up.
func (a *App) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.ready:
		return a.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()

	ln, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerStartFailed, err)
	}
	a.addr = ln.Addr()
	close(a.ready)

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		a.logger.Info().
			Str(xglog.FieldEvent, "server.started").
			Str("addr", a.addr.String()).
			Msg("debug server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%w: %w", ErrServerStartFailed, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) shutdown() {
	if a.cfgHolder != nil {
		a.cfgHolder.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "shutdown.step_failed").Msg("shutdown step failed")
		}
	}
	a.logger.Info().
		Str(xglog.FieldEvent, "server.stopped").
		Int("subscribers", len(a.subscribers)).
		Msg("daemon stopped")
}
