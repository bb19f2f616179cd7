// Package config provides configuration loading for resumegate.
//
// Configuration is loaded from environment variables with sensible defaults,
// optionally layered over a YAML file (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// StartURLKey names the configuration key holding the start webhook URL.
// It is reported verbatim when the gateway is misconfigured.
const StartURLKey = "gateway.start_url (GATEWAY_START_URL)"

// Config holds the complete resumegate configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Gateway       GatewayConfig       `koanf:"gateway"`
	Observability ObservabilityConfig `koanf:"observability"`
	Events        EventsConfig        `koanf:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// GatewayConfig holds forwarder configuration.
type GatewayConfig struct {
	// StartURL is the fixed upstream for POST /start. Empty means misconfigured;
	// there is deliberately no default.
	StartURL        string        `koanf:"start_url"`
	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	PreviewChars    int           `koanf:"preview_chars"`
}

// WithDefaults returns a copy with non-positive limits replaced by their
// defaults. StartURL is left as is.
func (g GatewayConfig) WithDefaults() GatewayConfig {
	if g.UpstreamTimeout <= 0 {
		g.UpstreamTimeout = defaultUpstreamTimeout
	}
	if g.MaxBodyBytes <= 0 {
		g.MaxBodyBytes = defaultMaxBodyBytes
	}
	if g.PreviewChars <= 0 {
		g.PreviewChars = defaultPreviewChars
	}
	return g
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"`
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// EventsConfig holds relay audit event configuration.
// Events are disabled when NATSURL is empty.
type EventsConfig struct {
	NATSURL       Secret `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

const (
	defaultPort            = 9090
	defaultHost            = "0.0.0.0"
	defaultShutdownTimeout = 10 * time.Second
	defaultUpstreamTimeout = 60 * time.Second
	defaultMaxBodyBytes    = 10 << 20
	defaultPreviewChars    = 2000
	defaultServiceName     = "resumegate"
	defaultSubjectPrefix   = "resumegate.relay"
)

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - SERVER_HTTP_HOST: listen host (default: 0.0.0.0)
//   - SERVER_HTTP_PORT: HTTP server port (default: 9090)
//   - SERVER_SHUTDOWN_TIMEOUT: graceful shutdown timeout (default: 10s)
//   - GATEWAY_START_URL: start webhook URL (no default)
//   - GATEWAY_UPSTREAM_TIMEOUT: per-request upstream timeout (default: 60s)
//   - GATEWAY_MAX_BODY_BYTES: request/error body ceiling (default: 10 MiB)
//   - GATEWAY_PREVIEW_CHARS: error body log preview (default: 2000)
//   - OBSERVABILITY_ENABLE_TELEMETRY: enable OpenTelemetry (default: false)
//   - OBSERVABILITY_SERVICE_NAME: service name (default: resumegate)
//   - OBSERVABILITY_LOG_LEVEL / OBSERVABILITY_LOG_FORMAT: logger settings
//   - EVENTS_NATS_URL: NATS server for relay events (default: disabled)
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HTTP_HOST", defaultHost),
			Port:            getEnvInt("SERVER_HTTP_PORT", defaultPort),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Gateway: GatewayConfig{
			StartURL:        os.Getenv("GATEWAY_START_URL"),
			UpstreamTimeout: getEnvDuration("GATEWAY_UPSTREAM_TIMEOUT", defaultUpstreamTimeout),
			MaxBodyBytes:    int64(getEnvInt("GATEWAY_MAX_BODY_BYTES", defaultMaxBodyBytes)),
			PreviewChars:    getEnvInt("GATEWAY_PREVIEW_CHARS", defaultPreviewChars),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OBSERVABILITY_ENABLE_TELEMETRY", false),
			ServiceName:     getEnvString("OBSERVABILITY_SERVICE_NAME", defaultServiceName),
			LogLevel:        getEnvString("OBSERVABILITY_LOG_LEVEL", "info"),
			LogFormat:       getEnvString("OBSERVABILITY_LOG_FORMAT", "json"),
			OTLPEndpoint:    getEnvString("OBSERVABILITY_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:    getEnvString("OBSERVABILITY_OTLP_PROTOCOL", "grpc"),
			OTLPInsecure:    getEnvBool("OBSERVABILITY_OTLP_INSECURE", true),
		},
		Events: EventsConfig{
			NATSURL:       Secret(os.Getenv("EVENTS_NATS_URL")),
			SubjectPrefix: getEnvString("EVENTS_SUBJECT_PREFIX", defaultSubjectPrefix),
		},
	}
}

// Validate validates the configuration.
//
// A missing start URL is not an error here: the gateway still serves
// /resume and answers /start with an explicit misconfiguration response.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Gateway.UpstreamTimeout <= 0 {
		return errors.New("upstream timeout must be positive")
	}
	if c.Gateway.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}
	if c.Gateway.PreviewChars <= 0 {
		return errors.New("preview chars must be positive")
	}
	if c.Gateway.StartURL != "" {
		u, err := url.Parse(c.Gateway.StartURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", StartURLKey)
		}
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
