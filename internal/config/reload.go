// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/msgbus/internal/eventbus"
	xglog "github.com/ManuGH/msgbus/internal/log"
	"github.com/ManuGH/msgbus/internal/telemetry"
)

// Reloaded is published on the bus after a configuration reload succeeded.
type Reloaded struct {
	Previous AppConfig
	Current  AppConfig
}

// Holder holds configuration with atomic reloading capability.
// Successful reloads are announced as Reloaded messages on the bus.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	bus     *eventbus.Bus
	marshal eventbus.Marshal

	// reloadMu serializes whole reloads so Reloaded messages follow the
	// order in which configurations were swapped in.
	reloadMu sync.Mutex

	watchMu  sync.Mutex
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// guarded by mu
	lastReload time.Time
	lastErr    error
}

// NewHolder creates a holder with initial config. Reloads are published on
// bus through marshal.
func NewHolder(initial AppConfig, loader *Loader, bus *eventbus.Bus, marshal eventbus.Marshal) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   xglog.WithComponent("config"),
		bus:      bus,
		marshal:  marshal,
		debounce: 500 * time.Millisecond,
	}
}

// Get returns the current configuration (thread-safe read).
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// LastReload reports when the last reload was attempted and its error. The
// time is zero before the first reload.
func (h *Holder) LastReload() (time.Time, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReload, h.lastErr
}

// Reload reloads configuration from file and validates it.
// If loading fails, the old configuration is kept and an error is returned.
// Faults of Reloaded subscribers are logged; they do not undo the reload.
func (h *Holder) Reload(ctx context.Context) error {
	ctx, span := telemetry.Tracer("config").Start(ctx, "config.reload",
		trace.WithAttributes(attribute.String(telemetry.ConfigPathKey, h.loader.Path())))
	defer span.End()

	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.mu.Lock()
		h.lastReload, h.lastErr = time.Now(), err
		h.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		h.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.lastReload, h.lastErr = time.Now(), nil
	h.mu.Unlock()

	h.logger.Info().
		Str(xglog.FieldEvent, "config.reloaded").
		Str("dispatch", next.Bus.Dispatch).
		Str("log_level", next.Log.Level).
		Msg("configuration reloaded")

	if h.bus == nil {
		return nil
	}
	if err := h.bus.Publish(ctx, Reloaded{Previous: prev, Current: next}, h.marshal); err != nil {
		h.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "config.reload_subscriber_failed").
			Msg("reload subscriber failed")
	}
	return nil
}

// StartWatcher watches the config file and reloads on change until ctx is
// done. It is a no-op when the loader has no file.
func (h *Holder) StartWatcher(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	h.watchMu.Lock()
	h.watcher = watcher
	h.watchMu.Unlock()

	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str(xglog.FieldPath, path).
		Msg("watching config file for changes")

	go h.watchLoop(ctx, watcher)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Write and Create cover in-place edits and editors that replace the file.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().
				Str(xglog.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(h.debounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().
						Err(err).
						Str(xglog.FieldEvent, "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running).
func (h *Holder) Stop() {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.watcher != nil {
		_ = h.watcher.Close()
		h.watcher = nil
	}
}
