package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"led-bridge/internal/config"
	"led-bridge/pkg/transport"
)

// ServiceName is used for config file discovery and env var prefixes
const ServiceName = "led-bridge"

// Config contains all configuration for the bridge service
type Config struct {
	// Logging configuration
	Log config.LogConfig `yaml:"log"`

	// Outbound listener connection
	Bridge BridgeConfig `yaml:"bridge"`

	// Local HTTP server hosting the page and API
	HTTP HTTPConfig `yaml:"http"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics"`
}

// BridgeConfig configures the outbound connection and host channel
type BridgeConfig struct {
	// DefaultURL is the listener used when connect is called without one
	DefaultURL string `yaml:"default_url" env:"BRIDGE_URL"`

	// HostOrigin is the only origin the listen command is posted to
	HostOrigin string `yaml:"host_origin" env:"BRIDGE_HOST_ORIGIN" default:"https://wokwi.com"`

	// AutoConnect connects to DefaultURL on startup
	AutoConnect bool `yaml:"auto_connect" env:"BRIDGE_AUTO_CONNECT" default:"false"`

	// HandshakeTimeout of zero waits for the transport indefinitely
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"BRIDGE_HANDSHAKE_TIMEOUT" default:"0s"`

	WriteTimeout       time.Duration `yaml:"write_timeout" env:"BRIDGE_WRITE_TIMEOUT" default:"5s"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" env:"BRIDGE_INSECURE_SKIP_VERIFY" default:"false"`
}

// HTTPConfig configures the local HTTP server
type HTTPConfig struct {
	ListenAddress   string        `yaml:"listen_address" env:"HTTP_LISTEN_ADDRESS" default:"127.0.0.1:8095"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Load loads configuration from file, env file and environment
func Load(configFile, envFile string) (*Config, error) {
	cfg := &Config{}

	loader := config.NewLoader(config.Sources{
		ConfigFile:      configFile,
		EnvironmentFile: envFile,
		ServiceName:     ServiceName,
	})

	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load bridge configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bridge configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bridge.DefaultURL != "" {
		if _, err := transport.ValidateEndpoint(c.Bridge.DefaultURL); err != nil {
			return fmt.Errorf("invalid default URL: %w", err)
		}
	}

	if c.Bridge.AutoConnect && c.Bridge.DefaultURL == "" {
		return fmt.Errorf("auto connect requires a default URL")
	}

	if !strings.HasPrefix(c.Bridge.HostOrigin, "https://") && !strings.HasPrefix(c.Bridge.HostOrigin, "http://") {
		return fmt.Errorf("host origin must be an http(s) origin, got %q", c.Bridge.HostOrigin)
	}

	if c.Bridge.HandshakeTimeout < 0 {
		return fmt.Errorf("handshake timeout must not be negative")
	}

	if c.Bridge.WriteTimeout < 0 {
		return fmt.Errorf("write timeout must not be negative")
	}

	if _, _, err := net.SplitHostPort(c.HTTP.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %s: %w", c.HTTP.ListenAddress, err)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /")
	}

	return nil
}

// WebSocketOptions converts the bridge settings into dialer options
func (c *BridgeConfig) WebSocketOptions() transport.WebSocketOptions {
	return transport.WebSocketOptions{
		HandshakeTimeout:   c.HandshakeTimeout,
		WriteTimeout:       c.WriteTimeout,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}
