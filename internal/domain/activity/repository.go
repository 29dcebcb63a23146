package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reader exposes the externally owned user, order and payment history
type Reader interface {
	// GetUser retrieves a user snapshot
	GetUser(ctx context.Context, userID uuid.UUID) (*UserSnapshot, error)

	// CountOrdersSince counts orders placed by the user at or after since
	CountOrdersSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)

	// CountPaymentAttemptsSince counts payment attempts of any outcome
	CountPaymentAttemptsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)

	// CountFailedPaymentsSince counts failed payment attempts
	CountFailedPaymentsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)

	// OrderStats summarizes the user's entire order history
	OrderStats(ctx context.Context, userID uuid.UUID) (*OrderStats, error)
}

// AccountStatusUpdater flips the account status on block and unblock
type AccountStatusUpdater interface {
	SetAccountStatus(ctx context.Context, userID uuid.UUID, status AccountStatus) error
}
