// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/msgbus/internal/config"
)

func TestNewDispatchPolicy(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.BusConfig
	}{
		{name: "inline", cfg: config.BusConfig{Dispatch: config.DispatchInline}},
		{name: "background", cfg: config.BusConfig{Dispatch: config.DispatchBackground}},
		{name: "pool", cfg: config.BusConfig{Dispatch: config.DispatchPool, PoolSize: 2}},
		{name: "dispatcher", cfg: config.BusConfig{Dispatch: config.DispatchDispatcher}},
		{name: "rate limited", cfg: config.BusConfig{Dispatch: config.DispatchInline, RateLimit: 1000, RateBurst: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewDispatchPolicy(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, p.Marshal)
			defer p.Close()

			var ran atomic.Bool
			c := p.Marshal(func() error {
				ran.Store(true)
				return nil
			})
			require.NoError(t, c.Wait(context.Background()))
			assert.True(t, ran.Load())
		})
	}
}

func TestNewDispatchPolicyRejectsUnknownMode(t *testing.T) {
	_, err := NewDispatchPolicy(config.BusConfig{Dispatch: "carrier-pigeon"})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
