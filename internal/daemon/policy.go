// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ManuGH/msgbus/internal/config"
	"github.com/ManuGH/msgbus/internal/eventbus"
)

// DispatchPolicy is the marshal used for publishes, plus the function that
// releases whatever it owns.
type DispatchPolicy struct {
	Marshal eventbus.Marshal
	Close   func()
}

// NewDispatchPolicy builds the publish marshal selected by cfg.
func NewDispatchPolicy(cfg config.BusConfig) (DispatchPolicy, error) {
	p := DispatchPolicy{Close: func() {}}

	switch cfg.Dispatch {
	case config.DispatchInline:
		p.Marshal = eventbus.Inline
	case config.DispatchBackground:
		p.Marshal = eventbus.Background
	case config.DispatchPool:
		p.Marshal = eventbus.Pool(cfg.PoolSize)
	case config.DispatchDispatcher:
		d := eventbus.NewDispatcher()
		p.Marshal = d.Marshal
		p.Close = d.Close
	default:
		return DispatchPolicy{}, fmt.Errorf("%w: unknown dispatch policy %q", config.ErrInvalidConfig, cfg.Dispatch)
	}

	if cfg.RateLimit > 0 {
		p.Marshal = eventbus.RateLimited(p.Marshal, rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}
	return p, nil
}
