package telemetry

// Config controls trace export for the daemon. Tracing is off unless
// explicitly enabled; spans are shipped over OTLP gRPC.
type Config struct {
	// Enabled turns span export on.
	Enabled bool

	// ServiceName and ServiceVersion identify this process in the backend.
	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP collector address, host:port.
	Endpoint string

	// Insecure disables TLS on the collector connection.
	Insecure bool

	// SampleRate is the fraction of traces to keep, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns the settings used when the config file has no
// telemetry section: disabled, local collector, sample everything.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "wirecache",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
