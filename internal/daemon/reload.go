// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ManuGH/msgbus/internal/config"
	xglog "github.com/ManuGH/msgbus/internal/log"
)

// reloadApplier applies reloaded settings that can change at runtime.
// Logging is reconfigured in place; bus and server settings need a restart.
type reloadApplier struct {
	logger  zerolog.Logger
	version string
}

func (a *reloadApplier) HandleReloaded(_ context.Context, m config.Reloaded) error {
	if m.Previous.Log != m.Current.Log {
		xglog.Reconfigure(xglog.Config{
			Level:   m.Current.Log.Level,
			Service: m.Current.Log.Service,
			Version: a.version,
		})
		a.logger.Info().
			Str(xglog.FieldEvent, "log.level_changed").
			Str("old", m.Previous.Log.Level).
			Str("new", m.Current.Log.Level).
			Msg("logging reconfigured")
	}
	if m.Previous.Bus != m.Current.Bus || m.Previous.Server != m.Current.Server {
		a.logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Msg("bus or server settings changed; restart to apply")
	}
	return nil
}
