package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/e7canasta/scanview/modules/framebuffer"
	"github.com/e7canasta/scanview/modules/present"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration, filling defaults for unset optional values.
func Validate(cfg *Config) error {
	// Producer
	u, err := url.Parse(cfg.Producer.URL)
	if cfg.Producer.URL == "" || err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return invalid("producer.url must be a ws:// or wss:// url, got %q", cfg.Producer.URL)
	}
	rc := &cfg.Producer.Reconnect
	if rc.MaxRetries < 0 {
		return invalid("producer.reconnect.max_retries must be >= 0")
	}
	if rc.RetryDelay <= 0 {
		rc.RetryDelay = Default().Producer.Reconnect.RetryDelay
	}
	if rc.MaxRetryDelay <= 0 {
		rc.MaxRetryDelay = Default().Producer.Reconnect.MaxRetryDelay
	}
	if rc.MaxRetryDelay < rc.RetryDelay {
		return invalid("producer.reconnect.max_retry_delay (%v) must be >= retry_delay (%v)", rc.MaxRetryDelay, rc.RetryDelay)
	}

	// Job
	if cfg.Job.Width <= 0 {
		return invalid("job.width must be > 0")
	}
	if cfg.Job.Samples <= 0 {
		return invalid("job.samples must be > 0")
	}
	if !(cfg.Job.AspectRatio > 0) || math.IsInf(cfg.Job.AspectRatio, 0) {
		return invalid("job.aspect_ratio must be > 0")
	}
	rows := math.Floor(float64(cfg.Job.Width) / cfg.Job.AspectRatio)
	if rows < 1 {
		return invalid("job.width %d with aspect_ratio %v yields no rows", cfg.Job.Width, cfg.Job.AspectRatio)
	}
	if rows*float64(cfg.Job.Width) > framebuffer.MaxPixels {
		return invalid("job.width %d with aspect_ratio %v exceeds %d pixels",
			cfg.Job.Width, cfg.Job.AspectRatio, framebuffer.MaxPixels)
	}

	// Paint
	if cfg.Paint.FPS <= 0 || cfg.Paint.FPS > 1000 {
		return invalid("paint.fps must be 1-1000, got %d", cfg.Paint.FPS)
	}
	if cfg.Paint.BatchSize <= 0 {
		cfg.Paint.BatchSize = Default().Paint.BatchSize
	}

	// Present
	if cfg.Present.Columns <= 0 {
		cfg.Present.Columns = Default().Present.Columns
	}
	if cfg.Present.BitmapWidth < 0 || cfg.Present.BitmapHeight < 0 {
		return invalid("present.bitmap_width and bitmap_height must be >= 0")
	}
	if _, err := present.ParseScaler(cfg.Present.Scaler); err != nil {
		return fmt.Errorf("%w: present.scaler: %w", ErrInvalidConfig, err)
	}

	// Output
	if cfg.Output.Path != "" {
		if cfg.Output.Format == "" {
			if _, err := framebuffer.FormatFromPath(cfg.Output.Path); err != nil {
				return fmt.Errorf("%w: output.path: %w", ErrInvalidConfig, err)
			}
		} else if _, err := framebuffer.ParseFormat(cfg.Output.Format); err != nil {
			return fmt.Errorf("%w: output.format: %w", ErrInvalidConfig, err)
		}
	}
	if cfg.Output.JPEGQuality == 0 {
		cfg.Output.JPEGQuality = Default().Output.JPEGQuality
	}
	if cfg.Output.JPEGQuality < 1 || cfg.Output.JPEGQuality > 100 {
		return invalid("output.jpeg_quality must be 1-100, got %d", cfg.Output.JPEGQuality)
	}

	// MQTT
	if cfg.MQTT.QoS > 2 {
		return invalid("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = Default().MQTT.Topic
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = Default().MQTT.ClientID
		}
		cfg.MQTT.Topic = strings.TrimRight(cfg.MQTT.Topic, "/")
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = Default().Log.Level
	}
	if !logLevels[strings.ToLower(cfg.Log.Level)] {
		return invalid("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}

	return nil
}
