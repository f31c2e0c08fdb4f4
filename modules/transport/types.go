package transport

import (
	"errors"
	"log/slog"
	"time"

	"github.com/e7canasta/scanview/modules/transport/internal/ws"
	"github.com/gorilla/websocket"
)

var (
	// ErrInvalidURL is returned by Dial for a URL that is not ws:// or wss://.
	ErrInvalidURL = errors.New("transport: invalid producer url")

	// ErrClientClosed is returned by StartJob after Close.
	ErrClientClosed = errors.New("transport: client closed")

	// ErrInvalidJob is returned by StartJob for non-positive settings.
	ErrInvalidJob = errors.New("transport: invalid job settings")
)

// EndSentinel is the text frame marking the end of a stream.
const EndSentinel = "end"

// DefaultReadLimit caps a single inbound frame.
const DefaultReadLimit = 4 << 20

// JobSettings is the outbound job command.
type JobSettings struct {
	Width   int `json:"width"`
	Samples int `json:"samples"`
}

// ReconnectConfig contains configuration for exponential backoff on Dial.
type ReconnectConfig = ws.ReconnectConfig

// DefaultReconnectConfig returns 5 retries starting at 1s, capped at 30s.
func DefaultReconnectConfig() ReconnectConfig {
	return ws.DefaultReconnectConfig()
}

// ErrorCategory classifies connection errors.
type ErrorCategory = ws.ErrorCategory

const (
	ErrCategoryNetwork      = ws.ErrCategoryNetwork
	ErrCategoryProtocol     = ws.ErrCategoryProtocol
	ErrCategoryClosedNormal = ws.ErrCategoryClosedNormal
	ErrCategoryUnknown      = ws.ErrCategoryUnknown
)

// Classify categorizes a connection error.
func Classify(err error) ErrorCategory {
	return ws.Classify(err)
}

// Options configures Dial.
type Options struct {
	// URL of the producer endpoint (ws:// or wss://, required).
	URL string

	// Reconnect controls Dial retries. Zero value uses DefaultReconnectConfig.
	Reconnect ReconnectConfig

	// HandshakeTimeout per attempt (default 10s).
	HandshakeTimeout time.Duration

	// ReadLimit caps a single inbound frame in bytes (default DefaultReadLimit).
	ReadLimit int64

	// Dialer overrides the websocket dialer. Nil uses a copy of websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger for connection events. Nil uses slog.Default().
	Logger *slog.Logger
}

// ClientStats contains connection statistics.
type ClientStats struct {
	// Messages is the total number of inbound frames.
	Messages uint64
	// TextMessages and BinaryMessages split Messages by frame type.
	TextMessages   uint64
	BinaryMessages uint64
	// BytesRead is the total inbound payload size.
	BytesRead uint64
	// EndSeen reports whether the end sentinel arrived.
	EndSeen bool
	// Reconnects is the number of failed Dial attempts that were retried.
	Reconnects uint32
	// IsConnected indicates the connection is open.
	IsConnected bool
	// Errors counts read/dial errors per category name.
	Errors map[string]uint64
}
