// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/msgbus/internal/log"
)

// EnvPrefix is shared by every environment variable the Loader reads.
const EnvPrefix = "MSGBUS_"

// Environment variables read by the Loader.
const (
	EnvLogLevel     = "MSGBUS_LOG_LEVEL"
	EnvListenAddr   = "MSGBUS_LISTEN"
	EnvPublishLimit = "MSGBUS_PUBLISH_LIMIT"
	EnvBusName      = "MSGBUS_NAME"
	EnvDispatch     = "MSGBUS_DISPATCH"
	EnvPoolSize     = "MSGBUS_POOL_SIZE"
	EnvRateLimit    = "MSGBUS_RATE_LIMIT"
	EnvRateBurst    = "MSGBUS_RATE_BURST"
	EnvJournalSize  = "MSGBUS_JOURNAL_SIZE"
	EnvOtelEnabled  = "MSGBUS_OTEL_ENABLED"
	EnvOtelExporter = "MSGBUS_OTEL_EXPORTER"
	EnvOtelEndpoint = "MSGBUS_OTEL_ENDPOINT"
	EnvOtelSampling = "MSGBUS_OTEL_SAMPLING"
	EnvEnvironment  = "MSGBUS_ENVIRONMENT"
)

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if value == "" {
			logger.Debug().
				Str("key", key).
				Str("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
		return value
	}
	return defaultValue
}

// parseEnv reads key and converts it with parse. Invalid values fall back to
// defaultValue with a warning.
func parseEnv[T any](key string, defaultValue T, kind string, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	parsed, err := parse(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msgf("invalid %s in environment variable, using default", kind)
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

// ParseInt reads an integer from environment variable or returns default value.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, "integer", strconv.Atoi)
}

// ParseFloat reads a float from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, "float", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, "boolean", func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "yes":
			return true, nil
		case "no":
			return false, nil
		}
		return strconv.ParseBool(s)
	})
}
