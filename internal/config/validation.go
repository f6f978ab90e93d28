// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks cfg and reports every problem found.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		add("log.level %q", cfg.Log.Level)
	}
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		add("server.listenAddr is empty")
	}
	if cfg.Server.PublishLimit < 0 {
		add("server.publishLimit must not be negative, got %d", cfg.Server.PublishLimit)
	}
	if strings.TrimSpace(cfg.Bus.Name) == "" {
		add("bus.name is empty")
	}
	switch cfg.Bus.Dispatch {
	case DispatchInline, DispatchBackground, DispatchDispatcher, DispatchPool:
	default:
		add("bus.dispatch %q (supported: inline, background, dispatcher, pool)", cfg.Bus.Dispatch)
	}
	if cfg.Bus.Dispatch == DispatchPool && cfg.Bus.PoolSize < 1 {
		add("bus.poolSize must be at least 1, got %d", cfg.Bus.PoolSize)
	}
	if cfg.Bus.RateLimit < 0 {
		add("bus.rateLimit must not be negative, got %g", cfg.Bus.RateLimit)
	}
	if cfg.Bus.RateLimit > 0 && cfg.Bus.RateBurst < 1 {
		add("bus.rateBurst must be at least 1 when rateLimit is set, got %d", cfg.Bus.RateBurst)
	}
	if cfg.Bus.JournalSize < 0 {
		add("bus.journalSize must not be negative, got %d", cfg.Bus.JournalSize)
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case "grpc", "http":
		default:
			add("telemetry.exporter %q (supported: grpc, http)", cfg.Telemetry.ExporterType)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate must be within [0,1], got %g", cfg.Telemetry.SamplingRate)
		}
	}
	return errors.Join(errs...)
}
