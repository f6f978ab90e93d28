// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader builds an AppConfig from defaults, an optional YAML file and
// MSGBUS_* environment variables, in that order of precedence.
type Loader struct {
	configPath string
	version    string
}

// NewLoader returns a Loader for configPath. An empty path skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file path, if any.
func (l *Loader) Path() string {
	return l.configPath
}

// Load merges all layers and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
		cfg = *fileCfg
	}

	mergeEnv(&cfg)
	cfg.Telemetry.ServiceVersion = l.version

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing on top
// of the defaults. Unknown fields are rejected to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*AppConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &cfg, nil
}

// mergeEnv applies environment overrides to cfg.
func mergeEnv(cfg *AppConfig) {
	cfg.Log.Level = ParseString(EnvLogLevel, cfg.Log.Level)
	cfg.Server.ListenAddr = ParseString(EnvListenAddr, cfg.Server.ListenAddr)
	cfg.Server.PublishLimit = ParseInt(EnvPublishLimit, cfg.Server.PublishLimit)

	cfg.Bus.Name = ParseString(EnvBusName, cfg.Bus.Name)
	cfg.Bus.Dispatch = strings.ToLower(ParseString(EnvDispatch, cfg.Bus.Dispatch))
	cfg.Bus.PoolSize = ParseInt(EnvPoolSize, cfg.Bus.PoolSize)
	cfg.Bus.RateLimit = ParseFloat(EnvRateLimit, cfg.Bus.RateLimit)
	cfg.Bus.RateBurst = ParseInt(EnvRateBurst, cfg.Bus.RateBurst)
	cfg.Bus.JournalSize = ParseInt(EnvJournalSize, cfg.Bus.JournalSize)

	cfg.Telemetry.Enabled = ParseBool(EnvOtelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = ParseString(EnvOtelExporter, cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = ParseString(EnvOtelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvOtelSampling, cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString(EnvEnvironment, cfg.Telemetry.Environment)
}
