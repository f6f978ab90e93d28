// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on bus and config spans.
const (
	BusNameKey        = "bus.name"
	BusPublishIDKey   = "bus.publish_id"
	BusMessageTypeKey = "bus.message_type"
	BusCandidatesKey  = "bus.candidates"
	BusDeliveriesKey  = "bus.deliveries"
	BusPurgedKey      = "bus.purged"
	ConfigPathKey     = "config.path"
)

// PublishAttributes describes a publish before its fan-out.
func PublishAttributes(bus, publishID, messageType string, candidates int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BusNameKey, bus),
		attribute.String(BusPublishIDKey, publishID),
		attribute.String(BusMessageTypeKey, messageType),
		attribute.Int(BusCandidatesKey, candidates),
	}
}

// OutcomeAttributes describes a finished fan-out.
func OutcomeAttributes(deliveries, purged int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(BusDeliveriesKey, deliveries),
		attribute.Int(BusPurgedKey, purged),
	}
}
