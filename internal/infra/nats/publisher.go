// Package nats publishes encoded account events on NATS core subjects.
package nats

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/infra/config"
)

type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
	IsClosed() bool
}

// Publisher implements events.Sink on a NATS connection.
type Publisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
}

// NewPublisher connects to cfg.URL. Reconnects are handled by the client.
func NewPublisher(cfg config.NATSSettings, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("account-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("nats publisher initialized",
		zap.String("url", cfg.URL),
		zap.String("subject_prefix", cfg.SubjectPrefix),
	)
	return newPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newPublisher(c conn, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		conn:   c,
		prefix: strings.Trim(strings.TrimSpace(prefix), "."),
		logger: logger,
	}
}

// Emit publishes body on the subject for eventType. The key is carried inside the envelope.
func (p *Publisher) Emit(ctx context.Context, eventType, _ string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn.IsClosed() {
		return fmt.Errorf("nats connection closed")
	}
	subject := p.Subject(eventType)
	if err := p.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subject returns the prefixed subject for eventType.
func (p *Publisher) Subject(eventType string) string {
	if p.prefix == "" || strings.HasPrefix(eventType, p.prefix+".") {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	p.logger.Info("draining nats connection")
	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
