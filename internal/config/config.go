package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreConfig holds the embedded SQLite store settings.
type StoreConfig struct {
	Path string `json:"path"` // filesystem path to the sqlite database, "" = in-memory
}

// DaemonConfig holds daemon-specific settings.
type DaemonConfig struct {
	HTTPAddr string `json:"http_addr"`
	LogLevel string `json:"log_level"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter"`     // otlp-http (or otlp), stdout
	Endpoint    string  `json:"endpoint"`     // localhost:4318
	ServiceName string  `json:"service_name"` // weft
	SampleRate  float64 `json:"sample_rate"`  // 1.0
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled          bool      `json:"enabled"`
	Namespace        string    `json:"namespace"`
	HistogramBuckets []float64 `json:"histogram_buckets"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level          string `json:"level"`  // debug, info, warn, error
	Format         string `json:"format"` // text, json
	IncludeTraceID bool   `json:"include_trace_id"`
}

// ObservabilityConfig holds all observability-related settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

// SchedulerConfig holds scheduled-task tick settings.
type SchedulerConfig struct {
	TickInterval time.Duration `json:"tick_interval"` // default 100ms
}

// PluginConfig holds dynamic plugin loading settings.
type PluginConfig struct {
	Dir string `json:"dir"` // directory scanned for .so/.dll/.dylib plugins
}

// FilesystemConfig holds settings for the fs.* builtin plugin.
type FilesystemConfig struct {
	SandboxRoot string `json:"sandbox_root"` // "" = no sandbox (spec default)
}

// Config is the central configuration struct embedding all component configs.
type Config struct {
	Store         StoreConfig         `json:"store"`
	Scheduler     SchedulerConfig     `json:"scheduler"`
	Plugin        PluginConfig        `json:"plugin"`
	Filesystem    FilesystemConfig    `json:"filesystem"`
	Daemon        DaemonConfig        `json:"daemon"`
	Observability ObservabilityConfig `json:"observability"`
}

// DefaultConfig returns the built-in defaults: a local weft.db, loopback
// HTTP on 8080, a 100ms scheduler tick, and no filesystem sandbox.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "weft.db",
		},
		Scheduler: SchedulerConfig{
			TickInterval: 100 * time.Millisecond,
		},
		Plugin: PluginConfig{
			Dir: "",
		},
		Filesystem: FilesystemConfig{
			SandboxRoot: "",
		},
		Daemon: DaemonConfig{
			HTTPAddr: "127.0.0.1:8080",
			LogLevel: "info",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "weft",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:          true,
				Namespace:        "weft",
				HistogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			Logging: LoggingConfig{
				Level:          "info",
				Format:         "text",
				IncludeTraceID: true,
			},
		},
	}
}

// LoadFromFile loads configuration from a JSON file, layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("WEFT_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("WEFT_HTTP_ADDR"); v != "" {
		cfg.Daemon.HTTPAddr = v
	}
	if v := os.Getenv("WEFT_LOG_LEVEL"); v != "" {
		cfg.Daemon.LogLevel = v
	}
	if v := os.Getenv("WEFT_SCHEDULER_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.TickInterval = d
		}
	}
	if v := os.Getenv("WEFT_PLUGIN_DIR"); v != "" {
		cfg.Plugin.Dir = v
	}
	if v := os.Getenv("WEFT_FS_SANDBOX_ROOT"); v != "" {
		cfg.Filesystem.SandboxRoot = v
	}

	if v := os.Getenv("WEFT_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("WEFT_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("WEFT_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("WEFT_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = f
		}
	}
	if v := os.Getenv("WEFT_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("WEFT_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
	if v := os.Getenv("WEFT_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("WEFT_LOG_INCLUDE_TRACE_ID"); v != "" {
		cfg.Observability.Logging.IncludeTraceID = parseBool(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
