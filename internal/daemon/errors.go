// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingBus is returned when a daemon app is created without a bus.
	ErrMissingBus = errors.New("bus is required")

	// ErrMissingHandler is returned when the debug HTTP handler is not provided.
	ErrMissingHandler = errors.New("HTTP handler is required")

	// ErrServerStartFailed is returned when the debug server fails to start.
	ErrServerStartFailed = errors.New("server failed to start")
)
