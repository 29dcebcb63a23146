// Package kafka delivers fraud alert events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"fraud-risk-engine/internal/infrastructure/messaging"
	"fraud-risk-engine/internal/pkg/config"
)

// MessageWriter is the subset of kafka-go's Writer the sink needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink writes events keyed by user, so a user's events share a partition
type Sink struct {
	writer MessageWriter
}

// NewPublisher builds a publisher writing to the configured alerts topic
func NewPublisher(cfg config.KafkaConfig) *messaging.Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.FraudAlertsTopic,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkago.RequireAll,
	}
	return NewPublisherWithWriter(w)
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(w MessageWriter) *messaging.Publisher {
	return messaging.NewPublisher(&Sink{writer: w})
}

// Send implements messaging.Sink
func (s *Sink) Send(ctx context.Context, event *messaging.Event) error {
	msg := kafkago.Message{
		Key:   []byte(event.Key),
		Value: event.Body,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: messaging.HeaderEventType, Value: []byte(event.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes and closes the writer
func (s *Sink) Close() error {
	return s.writer.Close()
}
