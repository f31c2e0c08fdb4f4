package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig contains configuration for exponential backoff reconnection
type ReconnectConfig struct {
	MaxRetries    int           // Maximum number of reconnection attempts (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ReconnectState tracks the current state of reconnection attempts
type ReconnectState struct {
	CurrentRetries int
	Reconnects     *atomic.Uint32 // total failed attempts across the client's life
}

// ConnectFunc attempts to establish a connection
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect calls connectFn until it succeeds, waiting with exponential
// backoff between failures.
//
// Backoff schedule with the default config:
//   - Attempt 1: 1 second
//   - Attempt 2: 2 seconds
//   - Attempt 3: 4 seconds
//   - Attempt 4: 8 seconds
//   - Attempt 5: 16 seconds
//   - After 5 failures: stop (max retries exceeded)
//
// MaxRetries of 0 means a single attempt. Returns an error if max retries are
// exceeded or ctx is cancelled.
func RunWithReconnect(
	ctx context.Context,
	logger *slog.Logger,
	connectFn ConnectFunc,
	cfg ReconnectConfig,
	state *ReconnectState,
) error {
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			logger.Info("transport: context cancelled, stopping reconnection")
			return ctx.Err()
		default:
		}

		err := connectFn(ctx)
		if err == nil {
			state.CurrentRetries = 0
			logger.Info("transport: connection established")
			return nil
		}
		lastErr = err

		logger.Error("transport: connection failed",
			"error", err,
			"category", Classify(err).String())

		state.CurrentRetries++
		if state.Reconnects != nil {
			state.Reconnects.Add(1)
		}

		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("transport: max retries exceeded (%d attempts): %w", cfg.MaxRetries, lastErr)
		}

		delay := calculateBackoff(state.CurrentRetries, cfg)

		logger.Warn("transport: retrying connection",
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			logger.Info("transport: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// calculateBackoff returns retryDelay * 2^(attempt-1), capped at maxRetryDelay.
func calculateBackoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(shift))

	if cfg.MaxRetryDelay > 0 && (delay > cfg.MaxRetryDelay || delay <= 0) {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
