package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types carried in the event_type header
const (
	EventAlertCreated  = "alert.created"
	EventAlertReviewed = "alert.reviewed"
)

// AlertReviewedEvent carries the side-effect intents of a review for
// downstream order and payment services
type AlertReviewedEvent struct {
	AlertID     uuid.UUID   `json:"alert_id"`
	UserID      uuid.UUID   `json:"user_id"`
	OrderID     *uuid.UUID  `json:"order_id,omitempty"`
	Status      AlertStatus `json:"status"`
	ReviewedBy  uuid.UUID   `json:"reviewed_by"`
	UserBlocked bool        `json:"user_blocked"`
	CancelOrder bool        `json:"cancel_order"`
	IssueRefund bool        `json:"issue_refund"`
	Notes       string      `json:"notes,omitempty"`
	ReviewedAt  time.Time   `json:"reviewed_at"`
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) PublishAlertCreated(context.Context, *FraudAlert) error { return nil }

func (NopPublisher) PublishAlertReviewed(context.Context, *AlertReviewedEvent) error { return nil }
