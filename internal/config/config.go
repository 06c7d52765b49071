package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/filter"
	"github.com/VincentDePincent/EnderV3KE-integration/internal/publish"
)

// Config holds the full bridge configuration. It is read once at startup;
// changes require a restart.
type Config struct {
	// WSURL is the printer's telemetry websocket endpoint. Required.
	WSURL string `mapstructure:"ws_url"`

	Publish  PublishConfig      `mapstructure:"publish"`
	MQTT     publish.MQTTConfig `mapstructure:"mqtt"`
	Snapshot SnapshotConfig     `mapstructure:"snapshot"`

	// Tolerances control the change filter, per field.
	Tolerances filter.Tolerances `mapstructure:"tolerances"`

	Backoff BackoffConfig `mapstructure:"backoff"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// PublishConfig rate-limits outgoing records.
type PublishConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// SnapshotConfig describes the print image download.
type SnapshotConfig struct {
	// URL of the printer's snapshot endpoint. Empty disables snapshots.
	URL string `mapstructure:"url"`
	// LocalPath is where the image is written.
	LocalPath string `mapstructure:"local_path"`
	// PublicPath is the path published in the image_url field.
	PublicPath string `mapstructure:"public_path"`
	// MaxBytes bounds the download size.
	MaxBytes int64 `mapstructure:"max_bytes"`
	// Interval is the fetch cadence.
	Interval time.Duration `mapstructure:"interval"`
	// AllowedTypes is the content-type allowlist.
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// BackoffConfig bounds the reconnect wait.
type BackoffConfig struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// LogConfig controls the zap logger and the optional rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// MetricsConfig enables the local Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a Config with default values. The websocket URL and the
// broker settings have no defaults: they must be configured explicitly.
func Default() *Config {
	return &Config{
		Publish: PublishConfig{
			Interval: 2 * time.Second,
		},
		MQTT: publish.MQTTConfig{
			Topic:          "ender_v3ke/status",
			ClientID:       "enderbridge",
			Enabled:        true,
			ConnectTimeout: 10 * time.Second,
		},
		Snapshot: SnapshotConfig{
			LocalPath:  "public/images/3dprint.png",
			PublicPath: "/local/images/3dprint.png",
			MaxBytes:   5 << 20,
			Interval:   30 * time.Second,
		},
		Tolerances: filter.DefaultTolerances(),
		Backoff: BackoffConfig{
			Min: 1 * time.Second,
			Max: 60 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load loads configuration from files and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("enderbridge")
	v.SetConfigType("yaml")

	// Config paths in order of precedence, lowest first.
	v.AddConfigPath("/etc/enderbridge/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "enderbridge"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".enderbridge")
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("ENDERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind the variables the original bridge documented
	v.BindEnv("ws_url", "ENDERBRIDGE_WS_URL", "PRINTER_WS_URL")
	v.BindEnv("snapshot.url", "ENDERBRIDGE_SNAPSHOT_URL", "PRINTER_SNAPSHOT_URL")
	v.BindEnv("mqtt.broker", "ENDERBRIDGE_MQTT_BROKER", "MQTT_BROKER")
	v.BindEnv("mqtt.topic", "ENDERBRIDGE_MQTT_TOPIC", "MQTT_TOPIC")
	v.BindEnv("mqtt.username", "ENDERBRIDGE_MQTT_USERNAME", "MQTT_USER")
	v.BindEnv("mqtt.password", "ENDERBRIDGE_MQTT_PASSWORD", "MQTT_PASS")

	setDefaults(v)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("publish.interval", def.Publish.Interval)
	v.SetDefault("mqtt.topic", def.MQTT.Topic)
	v.SetDefault("mqtt.client_id", def.MQTT.ClientID)
	v.SetDefault("mqtt.enabled", def.MQTT.Enabled)
	v.SetDefault("mqtt.connect_timeout", def.MQTT.ConnectTimeout)
	v.SetDefault("snapshot.local_path", def.Snapshot.LocalPath)
	v.SetDefault("snapshot.public_path", def.Snapshot.PublicPath)
	v.SetDefault("snapshot.max_bytes", def.Snapshot.MaxBytes)
	v.SetDefault("snapshot.interval", def.Snapshot.Interval)
	v.SetDefault("backoff.min", def.Backoff.Min)
	v.SetDefault("backoff.max", def.Backoff.Max)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("tolerances.progress", def.Tolerances.Progress)
	v.SetDefault("tolerances.layer", def.Tolerances.Layer)
	v.SetDefault("tolerances.total_layers", def.Tolerances.TotalLayers)
	v.SetDefault("tolerances.elapsed", def.Tolerances.Elapsed)
	v.SetDefault("tolerances.remaining", def.Tolerances.Remaining)
	v.SetDefault("tolerances.nozzle_temp", def.Tolerances.NozzleTemp)
	v.SetDefault("tolerances.bed_temp", def.Tolerances.BedTemp)
	v.SetDefault("tolerances.used_filament", def.Tolerances.UsedFilament)
}

// Validate fails fast on missing or unusable required settings. The bridge
// refuses to start half-configured rather than falling back to placeholder
// endpoints.
func (c *Config) Validate() error {
	if c.WSURL == "" {
		return errors.New("ws_url is required")
	}
	if err := requireScheme("ws_url", c.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.MQTT.Enabled {
		if c.MQTT.BrokerURL == "" {
			return errors.New("mqtt.broker is required when MQTT is enabled")
		}
		if c.MQTT.Topic == "" {
			return errors.New("mqtt.topic is required when MQTT is enabled")
		}
		if (c.MQTT.Username == "") != (c.MQTT.Password == "") {
			return errors.New("mqtt.username and mqtt.password must be set together")
		}
	}
	if c.Snapshot.URL != "" {
		if err := requireScheme("snapshot.url", c.Snapshot.URL, "http", "https"); err != nil {
			return err
		}
		if c.Snapshot.LocalPath == "" {
			return errors.New("snapshot.local_path is required when snapshot.url is set")
		}
		if c.Snapshot.MaxBytes <= 0 {
			return errors.New("snapshot.max_bytes must be positive")
		}
		if c.Snapshot.Interval <= 0 {
			return errors.New("snapshot.interval must be positive")
		}
	}
	if c.Publish.Interval <= 0 {
		return errors.New("publish.interval must be positive")
	}
	if c.Backoff.Min <= 0 || c.Backoff.Max < c.Backoff.Min {
		return errors.New("backoff.min must be positive and no greater than backoff.max")
	}
	return nil
}

func requireScheme(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme %q not allowed (want %s)", field, u.Scheme, strings.Join(schemes, " or "))
}
