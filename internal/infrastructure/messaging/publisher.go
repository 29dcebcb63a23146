// Package messaging encodes fraud alert events and hands them to a broker
// sink. The kafka, nats and amqp subpackages provide the sinks.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/fraud"
)

// HeaderEventType names the broker header carrying the event type
const HeaderEventType = "event_type"

// Envelope is the JSON body of every published event
type Envelope struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Event is an encoded envelope plus its routing metadata
type Event struct {
	ID         uuid.UUID
	Type       string
	Key        string
	OccurredAt time.Time
	Body       []byte
}

// Sink delivers encoded events to a broker
type Sink interface {
	Send(ctx context.Context, event *Event) error
	Close() error
}

// Publisher implements fraud.EventPublisher over a Sink. Events are keyed
// by user so brokers that partition by key keep a user's events ordered.
type Publisher struct {
	sink Sink
	now  func() time.Time
}

// NewPublisher creates a publisher writing to sink
func NewPublisher(sink Sink) *Publisher {
	return &Publisher{
		sink: sink,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// PublishAlertCreated emits alert.created
func (p *Publisher) PublishAlertCreated(ctx context.Context, alert *fraud.FraudAlert) error {
	return p.publish(ctx, fraud.EventAlertCreated, alert.UserID, alert)
}

// PublishAlertReviewed emits alert.reviewed with the side-effect intents
func (p *Publisher) PublishAlertReviewed(ctx context.Context, event *fraud.AlertReviewedEvent) error {
	return p.publish(ctx, fraud.EventAlertReviewed, event.UserID, event)
}

func (p *Publisher) publish(ctx context.Context, eventType string, userID uuid.UUID, data any) error {
	env := Envelope{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: p.now(),
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", eventType, err)
	}

	return p.sink.Send(ctx, &Event{
		ID:         env.ID,
		Type:       eventType,
		Key:        userID.String(),
		OccurredAt: env.OccurredAt,
		Body:       body,
	})
}

// Close closes the sink
func (p *Publisher) Close() error {
	return p.sink.Close()
}
