package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
)

// Client is a paho session driven by a polling caller.
//
// It never reconnects on its own; the caller decides when Connect is tried.
// paho's goroutines only queue inbound messages, and Loop hands them to
// their handlers on the caller's goroutine, one at a time.
//
// Publish, IsConnected and Loop may be called from any goroutine.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// pending is the connect attempt in flight, if any.
	pending pahomqtt.Token
	connMu  sync.Mutex

	inbox chan inbound

	onDisconnect atomic.Pointer[func(error)]
	logger       atomic.Pointer[Logger]
}

// Logger receives handler failures and dropped messages.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// inbound is a queued message and the handler of the filter that matched it.
type inbound struct {
	topic   string
	payload []byte
	handler MessageHandler
}

// MessageHandler receives one message from Loop. A returned error is
// logged and does not stop delivery of later messages.
type MessageHandler = func(topic string, payload []byte) error

// New creates a client for the configured broker without connecting.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - clientID: MQTT client identifier, used when cfg.Broker.ClientID is empty
//
// Returns:
//   - *Client: Disconnected client; call Connect to attempt a session
func New(cfg config.MQTTConfig, clientID string) *Client {
	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = clientID
	}

	c := &Client{
		cfg:     cfg,
		options: buildClientOptions(cfg),
		inbox:   make(chan inbound, inboxSize),
	}

	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(c.options)
	return c
}

// Connect starts a connection attempt, or polls the one already in flight.
// It never waits: paho dials on its own goroutine and gives up after the
// configured connect timeout.
//
// Each attempt is single-shot; the caller owns retry timing. A fresh clean
// session is started every time, so subscriptions must be made again.
//
// Returns:
//   - done: false while the attempt is still in flight
//   - err: once done, ErrConnectionFailed wrapping the broker's reason, or nil
func (c *Client) Connect() (done bool, err error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.pending == nil {
		c.pending = c.client.Connect()
	}

	select {
	case <-c.pending.Done():
	default:
		return false, nil
	}

	token := c.pending
	c.pending = nil
	if err := token.Error(); err != nil {
		return true, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return true, nil
}

func (c *Client) handleDisconnect(err error) {
	if cb := c.onDisconnect.Load(); cb != nil {
		(*cb)(err)
	}
}

// Close ends the session, giving in-flight publishes a short quiesce.
// Calling it on a never-connected client is fine.
func (c *Client) Close() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(defaultDisconnectQuiesce)
	}
	return nil
}

// HealthCheck returns ErrNotConnected while there is no broker session.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether a broker session is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// SetOnDisconnect registers a callback for loss of an established session.
// It runs on a paho goroutine.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.onDisconnect.Store(&callback)
}

// SetLogger sets where handler failures are reported. Without one they
// are dropped silently.
func (c *Client) SetLogger(logger Logger) {
	c.logger.Store(&logger)
}

func (c *Client) getLogger() Logger {
	if l := c.logger.Load(); l != nil {
		return *l
	}
	return nil
}

// Loop dispatches queued inbound messages to their handlers.
//
// At most one inbox's worth of messages is processed per call so a flood of
// traffic cannot starve the rest of the caller's tick.
//
// Returns:
//   - int: Number of messages dispatched
func (c *Client) Loop() int {
	dispatched := 0
	for dispatched < inboxSize {
		select {
		case msg := <-c.inbox:
			c.dispatch(msg)
			dispatched++
		default:
			return dispatched
		}
	}
	return dispatched
}

// dispatch runs one handler with panic recovery and optional logging.
func (c *Client) dispatch(msg inbound) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", msg.topic,
					"panic", r,
				)
			}
		}
	}()

	if err := msg.handler(msg.topic, msg.payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", msg.topic,
				"error", err,
			)
		}
	}
}

// enqueue returns a paho callback that queues messages for handler.
// When the inbox is full the message is dropped and logged rather than
// blocking paho's router.
func (c *Client) enqueue(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.push(msg.Topic(), msg.Payload(), handler)
	}
}

func (c *Client) push(topic string, payload []byte, handler MessageHandler) {
	select {
	case c.inbox <- inbound{topic: topic, payload: payload, handler: handler}:
	default:
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT inbox full, message dropped", "topic", topic)
		}
	}
}
