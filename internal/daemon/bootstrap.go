// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"

	"github.com/ManuGH/msgbus/internal/config"
	"github.com/ManuGH/msgbus/internal/eventbus"
	"github.com/ManuGH/msgbus/internal/health"
	xglog "github.com/ManuGH/msgbus/internal/log"
	"github.com/ManuGH/msgbus/internal/telemetry"
)

// Bootstrap wires a runnable App from cfg: logging, tracing, the bus with
// its dispatch policy, the built-in subscribers and the debug server.
func Bootstrap(ctx context.Context, cfg config.AppConfig, loader *config.Loader, version string) (*App, error) {
	xglog.Reconfigure(xglog.Config{
		Level:   cfg.Log.Level,
		Service: cfg.Log.Service,
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	tcfg := cfg.Telemetry
	tcfg.ServiceVersion = version
	tp, err := telemetry.NewProvider(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	policy, err := NewDispatchPolicy(cfg.Bus)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	bus := eventbus.New(eventbus.WithName(cfg.Bus.Name))

	journal := NewJournal(cfg.Bus.JournalSize)
	if err := eventbus.Subscribe(bus, journal, eventbus.Inline, eventbus.On((*Journal).Record)); err != nil {
		policy.Close()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("subscribe journal: %w", err)
	}
	applier := &reloadApplier{logger: xglog.WithComponent("reload"), version: version}
	if err := eventbus.Subscribe(bus, applier, policy.Marshal); err != nil {
		policy.Close()
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("subscribe reload applier: %w", err)
	}

	holder := config.NewHolder(cfg, loader, bus, policy.Marshal)
	hm := health.NewManager(health.Options{
		Version:  version,
		BusName:  cfg.Bus.Name,
		Dispatch: cfg.Bus.Dispatch,
		Bus:      bus,
	})
	hm.Add("bus", health.BusCheck(bus))
	hm.Add("config_file", health.ConfigFileCheck(loader.Path()))
	hm.Add("config_reload", health.ReloadCheck(holder.LastReload))

	router := NewRouter(RouterConfig{
		BusName:      cfg.Bus.Name,
		Bus:          bus,
		Journal:      journal,
		Dispatch:     policy.Marshal,
		Health:       hm,
		PublishLimit: cfg.Server.PublishLimit,
	})

	app, err := NewApp(logger, bus, holder, router, cfg.Server.ListenAddr)
	if err != nil {
		policy.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	app.Keep(journal, applier)
	app.OnShutdown(tp.Shutdown)
	app.OnShutdown(func(context.Context) error {
		policy.Close()
		return nil
	})

	logger.Info().
		Str(xglog.FieldEvent, "daemon.bootstrapped").
		Str(xglog.FieldBus, cfg.Bus.Name).
		Str("dispatch", cfg.Bus.Dispatch).
		Bool("tracing", cfg.Telemetry.Enabled).
		Str("otel_endpoint", config.MaskURL(cfg.Telemetry.Endpoint)).
		Int("subscribers", bus.Len()).
		Msg("bus host ready")
	return app, nil
}
