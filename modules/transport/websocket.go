package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/scanview/modules/transport/internal/ws"
	"github.com/gorilla/websocket"
)

// Client is a websocket connection to a scanline producer.
type Client struct {
	url    string
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once

	messages   atomic.Uint64
	text       atomic.Uint64
	binary     atomic.Uint64
	bytesRead  atomic.Uint64
	endSeen    atomic.Bool
	reconnects atomic.Uint32
	connected  atomic.Bool
	errs       [ws.NumCategories]atomic.Uint64
}

// Dial connects to the producer, retrying with exponential backoff.
//
// Fails fast on an invalid URL; no network attempt is made.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q (want ws:// or wss://)", ErrInvalidURL, opts.URL)
	}

	if opts.Reconnect == (ReconnectConfig{}) {
		opts.Reconnect = DefaultReconnectConfig()
	}
	if opts.Reconnect.RetryDelay <= 0 {
		opts.Reconnect.RetryDelay = time.Second
	}
	if opts.Reconnect.MaxRetryDelay <= 0 {
		opts.Reconnect.MaxRetryDelay = 30 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := *websocket.DefaultDialer
	if opts.Dialer != nil {
		dialer = *opts.Dialer
	}
	dialer.HandshakeTimeout = opts.HandshakeTimeout

	c := &Client{url: opts.URL, logger: logger}
	state := &ws.ReconnectState{Reconnects: &c.reconnects}

	logger.Info("transport: connecting to producer", "url", opts.URL)

	connect := func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
		defer cancel()

		conn, resp, err := dialer.DialContext(attemptCtx, opts.URL, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.recordError(err)
			return err
		}
		c.conn = conn
		return nil
	}

	if err := ws.RunWithReconnect(ctx, logger, connect, opts.Reconnect, state); err != nil {
		return nil, err
	}

	c.conn.SetReadLimit(opts.ReadLimit)
	c.connected.Store(true)
	return c, nil
}

// StartJob sends the job command as a JSON text frame. ctx's deadline, if
// any, bounds the write.
func (c *Client) StartJob(ctx context.Context, settings JobSettings) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if settings.Width <= 0 || settings.Samples <= 0 {
		return fmt.Errorf("%w: width=%d samples=%d", ErrInvalidJob, settings.Width, settings.Samples)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteJSON(settings); err != nil {
		c.recordError(err)
		return fmt.Errorf("transport: send job command: %w", err)
	}

	c.logger.Info("transport: job command sent",
		"width", settings.Width,
		"samples", settings.Samples)
	return nil
}

// Run reads frames into sink until the connection closes or ctx is done.
// sink.Closed is called exactly once before Run returns: with nil for a
// normal close (by either side), ctx.Err() on cancellation, or the read error.
func (c *Client) Run(ctx context.Context, sink Sink) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-stop:
		}
	}()

	for {
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.connected.Store(false)
			sink.Closed(c.closeReason(ctx, err))
			return
		}

		c.messages.Add(1)
		c.bytesRead.Add(uint64(len(msg)))

		if typ == websocket.BinaryMessage {
			c.binary.Add(1)
			sink.Data(msg, true)
			continue
		}

		c.text.Add(1)
		if strings.TrimSpace(string(msg)) == EndSentinel {
			c.endSeen.Store(true)
			c.logger.Debug("transport: end sentinel received", "messages", c.messages.Load())
			sink.End()
			continue
		}
		sink.Data(msg, false)
	}
}

func (c *Client) closeReason(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.closed.Load() {
		return nil
	}

	category := c.recordError(err)
	if category == ErrCategoryClosedNormal {
		c.logger.Info("transport: producer closed connection")
		return nil
	}

	c.logger.Warn("transport: connection lost",
		"error", err,
		"category", category.String(),
		"end_seen", c.endSeen.Load())
	return err
}

func (c *Client) recordError(err error) ErrorCategory {
	category := ws.Classify(err)
	c.errs[category].Add(1)
	return category
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.connected.Store(false)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug("transport: close frame not sent", "error", werr)
		}
		err = c.conn.Close()
		c.logger.Info("transport: connection closed", "url", c.url)
	})
	return err
}

// Stats returns a snapshot of connection counters.
func (c *Client) Stats() ClientStats {
	errs := make(map[string]uint64, ws.NumCategories)
	for i := range c.errs {
		if n := c.errs[i].Load(); n > 0 {
			errs[ws.ErrorCategory(i).String()] = n
		}
	}
	return ClientStats{
		Messages:       c.messages.Load(),
		TextMessages:   c.text.Load(),
		BinaryMessages: c.binary.Load(),
		BytesRead:      c.bytesRead.Load(),
		EndSeen:        c.endSeen.Load(),
		Reconnects:     c.reconnects.Load(),
		IsConnected:    c.connected.Load(),
		Errors:         errs,
	}
}

var _ Producer = (*Client)(nil)
