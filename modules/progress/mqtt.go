package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned by Publish before Connect succeeds or while the
// broker connection is down.
var ErrNotConnected = errors.New("progress: mqtt not connected")

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MQTTOptions configures an MQTTEmitter.
type MQTTOptions struct {
	// Broker is host:port, or a full URL (tcp://, ssl://, ws://).
	Broker string

	// Topic prefix; updates go to <Topic>/<JobID>.
	Topic string

	QoS      byte
	ClientID string

	// Logger for connection events. Nil uses slog.Default().
	Logger *slog.Logger
}

// EmitterStats is a snapshot of emitter counters.
type EmitterStats struct {
	Published uint64
	Errors    uint64
	Connected bool
}

// publisher is the subset of mqtt.Client the emitter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTEmitter forwards progress updates to an MQTT broker.
type MQTTEmitter struct {
	opts   MQTTOptions
	logger *slog.Logger

	mu     sync.Mutex
	client publisher
	conn   mqtt.Client

	connected atomic.Bool
	published atomic.Uint64
	errors    atomic.Uint64
}

// NewMQTTEmitter creates an emitter. Call Connect before Run.
func NewMQTTEmitter(opts MQTTOptions) *MQTTEmitter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTEmitter{opts: opts, logger: logger}
}

// Connect establishes the broker connection with automatic reconnection.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	broker := e.opts.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(e.opts.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.connected.Store(true)
		e.logger.Info("progress: mqtt connection established",
			"broker", broker,
			"client_id", e.opts.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.connected.Store(false)
		e.logger.Warn("progress: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", broker)
	}

	client := mqtt.NewClient(opts)
	e.logger.Info("progress: connecting to mqtt broker", "broker", broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("progress: mqtt connection timeout after %v", connectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("progress: mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.conn = client
	e.mu.Unlock()
	e.connected.Store(true)
	return nil
}

// Topic returns the topic updates for jobID are published to.
func (e *MQTTEmitter) Topic(jobID string) string {
	return fmt.Sprintf("%s/%s", e.opts.Topic, jobID)
}

// Publish sends one update as JSON.
func (e *MQTTEmitter) Publish(p Progress) error {
	e.mu.Lock()
	client := e.client
	e.mu.Unlock()

	if client == nil || !e.connected.Load() {
		e.errors.Add(1)
		return ErrNotConnected
	}

	payload, err := json.Marshal(p)
	if err != nil {
		e.errors.Add(1)
		return fmt.Errorf("progress: marshal update: %w", err)
	}

	topic := e.Topic(p.JobID)
	token := client.Publish(topic, e.opts.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.errors.Add(1)
		return fmt.Errorf("progress: publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		e.errors.Add(1)
		return fmt.Errorf("progress: publish failed: %w", err)
	}

	e.published.Add(1)
	e.logger.Debug("progress: update published",
		"topic", topic,
		"rows_painted", p.RowsPainted,
		"size", len(payload))
	return nil
}

// Run forwards updates from a latest-only receiver until ctx is cancelled or
// the receiver is closed. Publish failures are logged and do not stop the loop.
func (e *MQTTEmitter) Run(ctx context.Context, rec Receiver) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			rec.Close()
		case <-stop:
		}
	}()

	for {
		p, ok := rec.Receive()
		if !ok {
			return
		}
		if err := e.Publish(p); err != nil {
			e.logger.Warn("progress: mqtt publish failed", "job_id", p.JobID, "error", err)
		}
	}
}

// Stats returns the current counters.
func (e *MQTTEmitter) Stats() EmitterStats {
	return EmitterStats{
		Published: e.published.Load(),
		Errors:    e.errors.Load(),
		Connected: e.connected.Load(),
	}
}

// Close disconnects from the broker.
func (e *MQTTEmitter) Close() {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.client = nil
	e.mu.Unlock()

	e.connected.Store(false)
	if conn != nil {
		conn.Disconnect(250)
		e.logger.Info("progress: mqtt disconnected")
	}
}
