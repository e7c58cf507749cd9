package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://wokwi.com", cfg.Bridge.HostOrigin)
	assert.Empty(t, cfg.Bridge.DefaultURL)
	assert.False(t, cfg.Bridge.AutoConnect)
	assert.Equal(t, time.Duration(0), cfg.Bridge.HandshakeTimeout)
	assert.Equal(t, 5*time.Second, cfg.Bridge.WriteTimeout)
	assert.Equal(t, "127.0.0.1:8095", cfg.HTTP.ListenAddress)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_File(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "led-bridge.yaml")
	content := `
log:
  level: debug
  format: json

bridge:
  default_url: ws://192.168.1.50:8080/leds
  auto_connect: true
  handshake_timeout: 3s
  insecure_skip_verify: true

http:
  listen_address: 0.0.0.0:9000

metrics:
  enabled: false
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))

	cfg, err := Load(configFile, "")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "ws://192.168.1.50:8080/leds", cfg.Bridge.DefaultURL)
	assert.True(t, cfg.Bridge.AutoConnect)
	assert.Equal(t, 3*time.Second, cfg.Bridge.HandshakeTimeout)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.ListenAddress)
	assert.False(t, cfg.Metrics.Enabled)

	opts := cfg.Bridge.WebSocketOptions()
	assert.Equal(t, 3*time.Second, opts.HandshakeTimeout)
	assert.Equal(t, 5*time.Second, opts.WriteTimeout)
	assert.True(t, opts.InsecureSkipVerify)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("LEDBRIDGE_BRIDGE_URL", "wss://leds.example.test/stream")
	t.Setenv("HTTP_LISTEN_ADDRESS", "127.0.0.1:7000")

	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, "wss://leds.example.test/stream", cfg.Bridge.DefaultURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.HTTP.ListenAddress)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("", "")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad default url", func(c *Config) { c.Bridge.DefaultURL = "http://nope" }, "invalid default URL"},
		{"auto connect without url", func(c *Config) { c.Bridge.AutoConnect = true }, "auto connect requires"},
		{"bad origin", func(c *Config) { c.Bridge.HostOrigin = "wokwi.com" }, "host origin"},
		{"negative handshake", func(c *Config) { c.Bridge.HandshakeTimeout = -time.Second }, "handshake timeout"},
		{"bad listen address", func(c *Config) { c.HTTP.ListenAddress = "8095" }, "invalid listen address"},
		{"bad metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
