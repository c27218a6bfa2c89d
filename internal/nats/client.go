package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// healthCheckTimeout bounds the JetStream account lookup in HealthCheck.
const healthCheckTimeout = 2 * time.Second

// Client is the connection key events are published over.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// connectOptions builds the connection options. Lost connections only
// delay key events; resolution keeps serving while the client reconnects.
func connectOptions(cfg Config, logger *slog.Logger) []nats.Option {
	return []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("key event publishing interrupted, NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("key event publishing resumed", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("key event connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("key event connection error", "error", err)
		}),
	}
}

// NewClient connects to cfg.URL and opens JetStream for key events.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "key-events")

	conn, err := nats.Connect(cfg.URL, connectOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open JetStream: %w", err)
	}

	logger.Info("key event publishing connected",
		"url", conn.ConnectedUrl(),
		"stream", cfg.Stream.Name,
	)

	return &Client{conn: conn, js: js, logger: logger}, nil
}

// JetStream returns the JetStream handle used by the stream manager and
// publisher.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Drain flushes pending key events and closes the connection.
func (c *Client) Drain() error {
	c.logger.Info("draining key event connection")
	return c.conn.Drain()
}

// Close closes the connection without flushing.
func (c *Client) Close() {
	c.conn.Close()
}

// HealthCheck backs the "nats" readiness check. Key events can be published
// only while the connection is up and JetStream answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("%w: status %s", ErrNotConnected, c.conn.Status())
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if _, err := c.js.AccountInfo(ctx); err != nil {
		return fmt.Errorf("JetStream unavailable: %w", err)
	}
	return nil
}
