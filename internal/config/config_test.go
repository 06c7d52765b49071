package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Empty(t, cfg.WSURL, "the websocket URL must have no default")
	assert.Empty(t, cfg.MQTT.BrokerURL, "the broker must have no default")
	assert.Equal(t, 2*time.Second, cfg.Publish.Interval)
	assert.Equal(t, "ender_v3ke/status", cfg.MQTT.Topic)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, int64(5<<20), cfg.Snapshot.MaxBytes)
	assert.Equal(t, 1*time.Second, cfg.Backoff.Min)
	assert.Equal(t, 60*time.Second, cfg.Backoff.Max)
	assert.Equal(t, 0.5, cfg.Tolerances.NozzleTemp)
	assert.Equal(t, float64(1), cfg.Tolerances.Layer)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("returns error for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromFile("/nonexistent/path/enderbridge.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("parses all sections", func(t *testing.T) {
		tmpDir := t.TempDir()
		configContent := `
ws_url: ws://printer.local:9999/
publish:
  interval: 5s
mqtt:
  broker: tcp://broker.local:1883
  topic: printers/ender
  username: bridge
  password: secret
  tls: true
  tls_insecure: true
snapshot:
  url: http://printer.local/downloads/original/current_print_image.png
  local_path: /var/lib/enderbridge/print.png
  public_path: /local/enderbridge/print.png
  max_bytes: 1048576
  interval: 45s
tolerances:
  nozzle_temp: 1.5
  progress: 0.1
backoff:
  min: 2s
  max: 120s
log:
  level: debug
  file: /var/log/enderbridge.log
metrics:
  addr: 127.0.0.1:9109
`
		configPath := filepath.Join(tmpDir, "enderbridge.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "ws://printer.local:9999/", cfg.WSURL)
		assert.Equal(t, 5*time.Second, cfg.Publish.Interval)
		assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.BrokerURL)
		assert.Equal(t, "printers/ender", cfg.MQTT.Topic)
		assert.Equal(t, "bridge", cfg.MQTT.Username)
		assert.True(t, cfg.MQTT.UseTLS)
		assert.True(t, cfg.MQTT.TLSInsecure)
		assert.Equal(t, int64(1048576), cfg.Snapshot.MaxBytes)
		assert.Equal(t, 45*time.Second, cfg.Snapshot.Interval)
		assert.Equal(t, 1.5, cfg.Tolerances.NozzleTemp)
		assert.Equal(t, 0.1, cfg.Tolerances.Progress)
		assert.Equal(t, 2*time.Second, cfg.Backoff.Min)
		assert.Equal(t, 120*time.Second, cfg.Backoff.Max)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "127.0.0.1:9109", cfg.Metrics.Addr)

		require.NoError(t, cfg.Validate())
	})

	t.Run("unset fields keep defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "minimal.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("ws_url: ws://printer.local/\n"), 0o644))

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)

		assert.Equal(t, 2*time.Second, cfg.Publish.Interval)
		assert.Equal(t, "ender_v3ke/status", cfg.MQTT.Topic)
		assert.Equal(t, 0.5, cfg.Tolerances.BedTemp)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.WSURL = "ws://printer.local:9999/"
		cfg.MQTT.BrokerURL = "tcp://broker.local:1883"
		return cfg
	}

	t.Run("accepts a complete config", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing ws_url",
			mutate:  func(c *Config) { c.WSURL = "" },
			wantErr: "ws_url is required",
		},
		{
			name:    "http scheme for ws_url",
			mutate:  func(c *Config) { c.WSURL = "http://printer.local/" },
			wantErr: "scheme",
		},
		{
			name:    "mqtt enabled without broker",
			mutate:  func(c *Config) { c.MQTT.BrokerURL = "" },
			wantErr: "mqtt.broker is required",
		},
		{
			name:    "mqtt enabled without topic",
			mutate:  func(c *Config) { c.MQTT.Topic = "" },
			wantErr: "mqtt.topic is required",
		},
		{
			name:    "username without password",
			mutate:  func(c *Config) { c.MQTT.Username = "bridge" },
			wantErr: "must be set together",
		},
		{
			name:    "snapshot url with bad scheme",
			mutate:  func(c *Config) { c.Snapshot.URL = "ftp://printer.local/img.png" },
			wantErr: "scheme",
		},
		{
			name: "snapshot with non-positive size",
			mutate: func(c *Config) {
				c.Snapshot.URL = "http://printer.local/img.png"
				c.Snapshot.MaxBytes = 0
			},
			wantErr: "max_bytes",
		},
		{
			name:    "non-positive publish interval",
			mutate:  func(c *Config) { c.Publish.Interval = 0 },
			wantErr: "publish.interval",
		},
		{
			name:    "backoff ceiling below floor",
			mutate:  func(c *Config) { c.Backoff.Max = c.Backoff.Min / 2 },
			wantErr: "backoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("mqtt disabled needs no broker", func(t *testing.T) {
		cfg := valid()
		cfg.MQTT.Enabled = false
		cfg.MQTT.BrokerURL = ""
		require.NoError(t, cfg.Validate())
	})
}
