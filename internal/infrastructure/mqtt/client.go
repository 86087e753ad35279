package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/mqtt-relay/internal/event"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the relay.
//
// It owns the single broker connection, publishes the birth message on every
// successful connection, reports each connection result to the event queue
// and publishes file contents with missing-file fallback.
//
// Thread Safety:
//   - Connect, IsConnected and Close are safe for concurrent use.
//   - PublishFile keeps the missing-file flag without locking and must only
//     be called from one goroutine (the relay loop).
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	queue  event.Poster
	logger Logger

	// fallback is published once when the watched file disappears.
	fallback string

	// fileMissing records that the missing file was already reported.
	fileMissing bool

	closeOnce sync.Once
}

// Logger defines the logging interface for the client.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// New builds a client from config without connecting.
//
// It resolves the password (reading the password file if needed), loads TLS
// material and registers the connection callbacks.
//
// Parameters:
//   - cfg: MQTT configuration
//   - fallback: payload published once when the watched file goes missing
//   - queue: receives a BrokerConnected event per connection result
//   - logger: may be nil
//
// Returns:
//   - *Client: client ready for Connect
//   - error: wrapping config.ErrInvalidConfig if credentials or TLS material
//     cannot be loaded
func New(cfg config.MQTTConfig, fallback string, queue event.Poster, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	password, err := resolvePassword(cfg.Auth)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := newTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		logger.Info("enabling TLS")
	}
	if cfg.Will.Enabled() {
		logger.Info("enabling will message on MQTT broker", "topic", cfg.Will.Topic)
	}

	c := &Client{
		cfg:      cfg,
		queue:    queue,
		logger:   logger,
		fallback: fallback,
	}

	opts := buildClientOptions(cfg, password, tlsConfig)
	opts.SetOnConnectHandler(c.handleConnect)
	opts.SetConnectionLostHandler(c.handleConnectionLost)
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.logger.Info("reconnecting to MQTT broker")
	})

	c.client = pahomqtt.NewClient(opts)
	return c, nil
}

// Connect issues the initial connection attempt and waits for its result
// within ctx.
//
// Outcomes:
//   - accepted: returns nil; the connect callback publishes the birth
//     message and posts BrokerConnected(0)
//   - refused by the broker (CONNACK code 1-5): logs, posts
//     BrokerConnected(code) and returns nil; the relay decides what to do
//   - network or protocol failure: returns an error wrapping ErrConnectionFailed
//   - ctx done first: returns nil and leaves the attempt in flight, so the
//     caller's own budget decides whether it was too slow
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to MQTT broker",
		"host", c.cfg.Broker.Host,
		"port", c.cfg.Broker.Port,
		"client_id", c.cfg.Broker.ClientID,
	)

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		c.logger.Warn("connection to MQTT broker still pending", "error", ctx.Err())
		return nil
	}

	var rc byte
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		rc = ct.ReturnCode()
	}
	return c.connectResult(rc, token.Error())
}

// connectResult interprets the outcome of the initial connection attempt.
func (c *Client) connectResult(rc byte, err error) error {
	if err == nil {
		return nil
	}
	if rc >= packets.ErrRefusedBadProtocolVersion && rc <= packets.ErrRefusedNotAuthorised {
		c.logger.Error("connection to MQTT broker failed", "reason", ConnackString(rc))
		c.queue.Post(event.BrokerConnected(rc))
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
}

// handleConnect runs on every successful connection, including reconnects.
// The birth message goes out before the event is posted.
func (c *Client) handleConnect(client pahomqtt.Client) {
	c.logger.Info("connection to MQTT broker established")

	if birth := c.cfg.Birth; birth.Enabled() {
		c.logger.Info("publishing birth message", "topic", birth.Topic)
		client.Publish(birth.Topic, byte(birth.QoS), birth.Retain, birth.Payload)
	}

	c.queue.Post(event.BrokerConnected(packets.Accepted))
}

// handleConnectionLost logs the disconnect. No event is posted: the library
// reconnects and handleConnect reports the new connection.
func (c *Client) handleConnectionLost(_ pahomqtt.Client, err error) {
	c.logger.Warn("disconnected from MQTT broker", "error", err)
}

// Close disconnects from the broker, waiting at most the quiesce period for
// in-flight work. Safe to call more than once and before Connect.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.logger.Info("disconnecting from MQTT broker")
		c.client.Disconnect(defaultDisconnectQuiesce)
	})
	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected reports whether the broker link is currently up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// ConnackString returns a human-readable description of a CONNACK return code.
func ConnackString(rc byte) string {
	if s, ok := packets.ConnackReturnCodes[rc]; ok {
		return s
	}
	return fmt.Sprintf("unknown return code %d", rc)
}
