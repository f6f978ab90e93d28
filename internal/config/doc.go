// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for msgbusd.
//
// Configuration is layered: Defaults, then a strict YAML file, then
// MSGBUS_* environment variables, then Validate. A Holder keeps the active
// configuration and announces reloads as Reloaded messages on the bus.
package config
