package api

import "time"

// Config configures the control API HTTP server.
//
// The server exposes health probes, worker status, and the control message
// channel used by pages and wirecachectl.
type Config struct {
	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 10s
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration

	// RequestTimeout caps the total handling time of a single request.
	// Default: 30s
	RequestTimeout time.Duration

	// AuthSecret is the HMAC secret for bearer tokens. Empty disables
	// authentication; the /v1 routes are then open.
	AuthSecret string

	// TokenTTL is the lifetime of issued tokens.
	// Default: 24h
	TokenTTL time.Duration
}

// AuthEnabled reports whether bearer authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.AuthSecret != ""
}

// applyDefaults fills in zero values with sensible defaults.
//
// Defaults are applied here as well as during config loading so the server
// works correctly when created directly (e.g. in tests).
func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 24 * time.Hour
	}
}
