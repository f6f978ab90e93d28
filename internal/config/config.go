// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/msgbus/internal/telemetry"
)

// Dispatch policies accepted in BusConfig.Dispatch.
const (
	DispatchInline     = "inline"
	DispatchBackground = "background"
	DispatchDispatcher = "dispatcher"
	DispatchPool       = "pool"
)

// AppConfig is the complete configuration of the bus host.
type AppConfig struct {
	Log       LogConfig        `yaml:"log"`
	Server    ServerConfig     `yaml:"server"`
	Bus       BusConfig        `yaml:"bus"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// ServerConfig configures the debug HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`

	// PublishLimit caps POST /debug/publish per client IP, in requests per
	// minute. Zero disables the limit.
	PublishLimit int `yaml:"publishLimit"`
}

// BusConfig configures the message bus and its default marshals.
type BusConfig struct {
	Name string `yaml:"name"`

	// Dispatch selects the marshal used for publishes: inline, background,
	// dispatcher or pool.
	Dispatch string `yaml:"dispatch"`

	// PoolSize bounds in-flight work when Dispatch is "pool".
	PoolSize int `yaml:"poolSize"`

	// RateLimit caps publishes per second; 0 disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`

	// JournalSize is how many recent messages the debug journal keeps.
	JournalSize int `yaml:"journalSize"`
}

// Defaults returns the configuration used when neither file nor
// environment set a value.
func Defaults() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:   "info",
			Service: "msgbusd",
		},
		Server: ServerConfig{
			ListenAddr:   ":8089",
			PublishLimit: 60,
		},
		Bus: BusConfig{
			Name:        "default",
			Dispatch:    DispatchBackground,
			PoolSize:    8,
			RateBurst:   1,
			JournalSize: 100,
		},
		Telemetry: telemetry.Config{
			ServiceName:  "msgbusd",
			Environment:  "development",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
