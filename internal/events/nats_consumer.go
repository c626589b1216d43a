package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// typecheck
var _ EventConsumer = new(NATSConsumer)

type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSConsumer publishes each event as JSON on "<prefix>.<event type>".
type NATSConsumer struct {
	conn   natsConn
	prefix string
	logger *slog.Logger
}

func NewNATSConsumer(url, prefix string, logger *slog.Logger) (*NATSConsumer, error) {
	nc, err := nats.Connect(url,
		nats.Name("blogapi"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSConsumer{
		conn:   nc,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (c *NATSConsumer) Subject(eventType string) string {
	if c.prefix == "" {
		return eventType
	}
	return c.prefix + "." + eventType
}

func (c *NATSConsumer) Consume(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.conn.Publish(c.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (c *NATSConsumer) Start(context.Context) {}

// Stop flushes pending publishes and closes the connection.
func (c *NATSConsumer) Stop() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Error("failed to drain NATS connection", "error", err)
	}
}
