// Package nats delivers fraud alert events to NATS subjects.
package nats

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"fraud-risk-engine/internal/infrastructure/messaging"
	"fraud-risk-engine/internal/pkg/config"
)

// MsgPublisher is the subset of *nats.Conn the sink needs
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
	Drain() error
}

// Sink publishes each event on <prefix>.<event type>
type Sink struct {
	conn   MsgPublisher
	prefix string
}

// NewPublisher connects to NATS and returns a publisher on the configured prefix
func NewPublisher(cfg config.NATSConfig) (*messaging.Publisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewPublisherWithConn(conn, cfg.SubjectPrefix), nil
}

// NewPublisherWithConn wraps an existing connection
func NewPublisherWithConn(conn MsgPublisher, prefix string) *messaging.Publisher {
	return messaging.NewPublisher(&Sink{conn: conn, prefix: prefix})
}

// Send implements messaging.Sink. The event id doubles as the JetStream
// de-duplication id.
func (s *Sink) Send(ctx context.Context, event *messaging.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(s.prefix + "." + event.Type)
	msg.Data = event.Body
	msg.Header.Set(messaging.HeaderEventType, event.Type)
	msg.Header.Set(nats.MsgIdHdr, event.ID.String())
	msg.Header.Set("user_id", event.Key)

	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", event.Type, err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (s *Sink) Close() error {
	return s.conn.Drain()
}
