package config

import (
	"strings"
	"time"

	"github.com/wirecache/wirecache/internal/bytesize"
	"github.com/wirecache/wirecache/internal/telemetry"
	"github.com/wirecache/wirecache/pkg/update"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	applyStoreDefaults(&cfg.Store)
	applyOutboxDefaults(&cfg.Outbox)
	applyOriginDefaults(&cfg.Origin)
	applyPrecacheDefaults(&cfg.Precache)
	applyRoutingDefaults(cfg)
	applyUpdateDefaults(&cfg.Update)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = telemetry.DefaultProfileTypes()
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets API server defaults.
// The API is always enabled: it carries the page message channel.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	// AuthSecret has no default: an empty secret disables authentication.
}

// applyStoreDefaults sets cache store defaults.
// Store path is required and has no default.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 5 * bytesize.MB
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
}

// applyOutboxDefaults sets offline write queue defaults.
// Outbox path is required and has no default.
func applyOutboxDefaults(cfg *OutboxConfig) {
	if cfg.ReplayInterval == 0 {
		cfg.ReplayInterval = 30 * time.Second
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 2 * time.Minute
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = 2.0
	}
}

// applyOriginDefaults sets origin fetch defaults.
func applyOriginDefaults(cfg *OriginConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
}

// applyPrecacheDefaults sets install manifest defaults.
func applyPrecacheDefaults(cfg *PrecacheConfig) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
}

// applyRoutingDefaults installs the default rule table when none is
// configured: everything goes network-first into a "default" namespace,
// which is the safest behavior for unknown routes.
func applyRoutingDefaults(cfg *Config) {
	if len(cfg.Routing) == 0 {
		cfg.Routing = []RuleConfig{
			{
				Name:      "default",
				Strategy:  "network-first",
				Namespace: "default",
			},
		}
	}
}

// applyUpdateDefaults sets update policy defaults.
func applyUpdateDefaults(cfg *UpdateConfig) {
	if cfg.Policy == "" {
		cfg.Policy = string(update.PolicyManual)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Path: "/tmp/wirecache/store",
		},
		Outbox: OutboxConfig{
			Path: "/tmp/wirecache/outbox.db",
		},
		Precache: PrecacheConfig{
			Version: 1,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
