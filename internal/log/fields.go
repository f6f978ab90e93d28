// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Bus fields
	FieldEvent       = "event"
	FieldComponent   = "component"
	FieldBus         = "bus"
	FieldMessageType = "message_type"
	FieldSubscriber  = "subscriber"

	// Config fields
	FieldPath = "path"
)
