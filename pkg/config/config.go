package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wirecache/wirecache/internal/bytesize"
)

// Config represents the wirecache daemon configuration.
//
// This structure captures every static aspect of the caching worker:
//   - Logging configuration
//   - Telemetry/tracing and profiling configuration
//   - Metrics and API server settings
//   - Cache store location and limits
//   - Offline outbox location and replay scheduling
//   - Pre-cache manifest for the current worker version
//   - Routing rules mapping requests to caching strategies
//   - Update policy
//
// Configuration sources (in order of precedence):
//  1. Environment variables (WIRECACHE_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the worker message/control API server configuration
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Store configures the durable cache store
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Outbox configures the offline write queue and its replay scheduler
	Outbox OutboxConfig `mapstructure:"outbox" yaml:"outbox"`

	// Origin configures outbound fetches to the origin
	Origin OriginConfig `mapstructure:"origin" yaml:"origin"`

	// Precache is the manifest pre-cached on install for the current version
	Precache PrecacheConfig `mapstructure:"precache" yaml:"precache"`

	// Routing is the ordered strategy rule table. The last rule must be a
	// wildcard default.
	Routing []RuleConfig `mapstructure:"routing" yaml:"routing"`

	// Update controls when a newly installed version activates
	Update UpdateConfig `mapstructure:"update" yaml:"update"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// APIConfig configures the worker's HTTP API, which carries the page message
// channel (apply-update, warm-cache, purge-cache, report-cache-size) and
// health endpoints.
type APIConfig struct {
	// Port is the HTTP port for the API server
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading a request
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum duration for idle keep-alive connections
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds in-flight request handling
	// Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// AuthSecret is the HMAC secret for API bearer tokens. When empty,
	// authentication is disabled (local development only).
	// Override: WIRECACHE_API_AUTH_SECRET
	AuthSecret string `mapstructure:"auth_secret" yaml:"auth_secret,omitempty"`

	// TokenTTL is the validity period for issued API tokens
	// Default: 24h
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// StoreConfig configures the durable cache store.
type StoreConfig struct {
	// Path is the directory for the cache database (required)
	// Example: /var/lib/wirecache/store
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// MaxBodySize caps the stored body size per entry; larger responses are
	// served uncached. Supports human-readable formats: "5MB", "512Ki".
	// Default: 5MB
	MaxBodySize bytesize.ByteSize `mapstructure:"max_body_size" yaml:"max_body_size,omitempty"`

	// SweepInterval is how often expired entries are evicted from disk.
	// Default: 10m
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval,omitempty"`
}

// OutboxConfig configures the offline write queue.
type OutboxConfig struct {
	// Path is the outbox database file (required)
	// Example: /var/lib/wirecache/outbox.db
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// ReplayInterval is how often queued writes are replayed
	// Default: 30s
	ReplayInterval time.Duration `mapstructure:"replay_interval" yaml:"replay_interval"`

	// InitialBackoff is the wait before retrying after a failed replay pass
	// Default: 1s
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`

	// MaxBackoff is the maximum wait between failed replay passes
	// Default: 2m
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	// Default: 2.0
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier,omitempty"`
}

// OriginConfig configures outbound fetches to the origin.
type OriginConfig struct {
	// Timeout bounds each origin fetch, including pre-cache installs
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PrecacheConfig is the install manifest: for each namespace purpose, the
// URLs fetched and cached before the worker version may start waiting.
type PrecacheConfig struct {
	// Version is the cache version shared by this worker's namespaces
	// Default: 1
	Version int `mapstructure:"version" validate:"omitempty,min=1" yaml:"version"`

	// Namespaces maps namespace purpose (e.g. "static") to pre-cached URLs
	Namespaces map[string][]string `mapstructure:"namespaces" yaml:"namespaces,omitempty"`
}

// RuleConfig is one entry of the routing table.
type RuleConfig struct {
	// Name identifies the rule in logs and errors
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Destinations matches the request destination kind
	// Valid values: document, style, script, image, font, api
	Destinations []string `mapstructure:"destinations" yaml:"destinations,omitempty"`

	// PathPattern is a glob matched against the URL path, e.g. "/api/*"
	PathPattern string `mapstructure:"path_pattern" yaml:"path_pattern,omitempty"`

	// Extensions matches the URL path's file extension, e.g. "css", "png"
	Extensions []string `mapstructure:"extensions" yaml:"extensions,omitempty"`

	// Strategy selects the caching strategy for matching requests
	// Valid values: cache-first, network-first, stale-while-revalidate,
	// cache-only, network-only
	Strategy string `mapstructure:"strategy" validate:"required,oneof=cache-first network-first stale-while-revalidate cache-only network-only" yaml:"strategy"`

	// Namespace is the target cache namespace purpose
	Namespace string `mapstructure:"namespace" validate:"required" yaml:"namespace"`

	// MaxEntries bounds the namespace after write-throughs. Zero disables.
	MaxEntries int `mapstructure:"max_entries" validate:"omitempty,min=1" yaml:"max_entries,omitempty"`

	// MaxAge stamps written entries with an expiry. Zero disables.
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age,omitempty"`

	// NetworkTimeout bounds network-first fetches. Zero falls back to the
	// origin timeout.
	NetworkTimeout time.Duration `mapstructure:"network_timeout" yaml:"network_timeout,omitempty"`
}

// UpdateConfig controls when a newly installed worker version activates.
type UpdateConfig struct {
	// Policy selects the activation policy
	// Valid values: manual (wait for apply-update), auto (activate immediately)
	// Default: manual
	Policy string `mapstructure:"policy" validate:"omitempty,oneof=manual auto" yaml:"policy"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (WIRECACHE_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  wirecache init\n\n"+
				"Or specify a custom config file:\n"+
				"  wirecache <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  wirecache init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: the file may contain the API auth secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the WIRECACHE_ prefix and underscores
	// Example: WIRECACHE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("WIRECACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/wirecache/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize so
// config files can use human-readable sizes like "5MB" or "512Ki".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration so config files can
// use human-readable durations like "30s" or "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "wirecache")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "wirecache")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
