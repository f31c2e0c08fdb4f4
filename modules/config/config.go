// Package config loads the viewer configuration from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete viewer configuration
type Config struct {
	Producer ProducerConfig `yaml:"producer"`
	Job      JobConfig      `yaml:"job"`
	Paint    PaintConfig    `yaml:"paint"`
	Present  PresentConfig  `yaml:"present"`
	Output   OutputConfig   `yaml:"output"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
}

// ProducerConfig contains the producer endpoint
type ProducerConfig struct {
	URL       string          `yaml:"url"` // ws:// or wss://
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig controls dial retries
type ReconnectConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`     // e.g. "1s"
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"` // e.g. "30s"
}

// JobConfig contains the render job request
type JobConfig struct {
	Width       int     `yaml:"width"`
	Samples     int     `yaml:"samples"`
	AspectRatio float64 `yaml:"aspect_ratio"` // height = floor(width / aspect_ratio)
}

// PaintConfig contains paint loop settings
type PaintConfig struct {
	FPS       int `yaml:"fps"`
	BatchSize int `yaml:"batch_size"` // scanlines composited per tick
}

// PresentConfig selects presentation surfaces
type PresentConfig struct {
	Terminal     bool   `yaml:"terminal"`
	Columns      int    `yaml:"columns"`
	BitmapWidth  int    `yaml:"bitmap_width"`  // 0 disables the bitmap surface
	BitmapHeight int    `yaml:"bitmap_height"` // 0 keeps the job's aspect ratio
	Scaler       string `yaml:"scaler"`        // nearest, approx-bilinear, bilinear, catmull-rom
}

// OutputConfig controls saving the settled image
type OutputConfig struct {
	Path        string `yaml:"path"`   // empty disables saving
	Format      string `yaml:"format"` // png, jpeg, ppm; empty infers from path
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// MQTTConfig contains optional progress publishing settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables MQTT
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	ClientID string `yaml:"client_id"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Producer: ProducerConfig{
			URL: "ws://localhost:7032/ws",
			Reconnect: ReconnectConfig{
				MaxRetries:    5,
				RetryDelay:    1 * time.Second,
				MaxRetryDelay: 30 * time.Second,
			},
		},
		Job: JobConfig{
			Width:       30,
			Samples:     100,
			AspectRatio: 1.0,
		},
		Paint: PaintConfig{
			FPS:       60,
			BatchSize: 8,
		},
		Present: PresentConfig{
			Columns: 80,
			Scaler:  "nearest",
		},
		Output: OutputConfig{
			JPEGQuality: 90,
		},
		MQTT: MQTTConfig{
			Topic:    "scanview/progress",
			QoS:      0,
			ClientID: "scanview",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps log.level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
