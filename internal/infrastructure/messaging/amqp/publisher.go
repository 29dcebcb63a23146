// Package amqp delivers fraud alert events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"fraud-risk-engine/internal/infrastructure/messaging"
	"fraud-risk-engine/internal/pkg/config"
)

const exchangeKind = "topic"

// ChannelPublisher is the subset of *amqp.Channel the sink needs
type ChannelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Sink publishes persistent messages routed by event type
type Sink struct {
	channel  ChannelPublisher
	conn     *amqp.Connection
	exchange string
}

// NewPublisher dials RabbitMQ, declares the exchange and returns a publisher
func NewPublisher(cfg config.AMQPConfig) (*messaging.Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}
	return messaging.NewPublisher(&Sink{channel: ch, conn: conn, exchange: cfg.Exchange}), nil
}

// NewPublisherWithChannel wraps an existing channel
func NewPublisherWithChannel(ch ChannelPublisher, exchange string) *messaging.Publisher {
	return messaging.NewPublisher(&Sink{channel: ch, exchange: exchange})
}

// Send implements messaging.Sink
func (s *Sink) Send(ctx context.Context, event *messaging.Event) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Headers: amqp.Table{
			messaging.HeaderEventType: event.Type,
			"user_id":                 event.Key,
		},
		Body: event.Body,
	}
	if err := s.channel.PublishWithContext(ctx, s.exchange, event.Type, false, false, msg); err != nil {
		return fmt.Errorf("amqp publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and, when owned, the connection
func (s *Sink) Close() error {
	err := s.channel.Close()
	if s.conn != nil {
		err = errors.Join(err, s.conn.Close())
	}
	return err
}
