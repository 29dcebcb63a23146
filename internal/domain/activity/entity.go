package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the state of a user account in the users table
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// Order statuses the engine reads
const (
	OrderStatusRefunded = "refunded"
)

// Payment statuses the engine reads
const (
	PaymentStatusFailed = "failed"
)

// UserSnapshot is the read-only view of a user needed for scoring
type UserSnapshot struct {
	ID        uuid.UUID     `json:"id"`
	Role      string        `json:"role"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// AccountAgeDays returns whole days elapsed since the account was created
func (u *UserSnapshot) AccountAgeDays(now time.Time) int {
	if now.Before(u.CreatedAt) {
		return 0
	}
	return int(now.Sub(u.CreatedAt).Hours() / 24)
}

// OrderStats summarizes a user's entire order history
type OrderStats struct {
	TotalOrders    int64           `json:"total_orders"`
	RefundedOrders int64           `json:"refunded_orders"`
	AverageAmount  decimal.Decimal `json:"average_amount"`
}

// RefundRatePercent returns refunded/total*100, and false when there are no orders
func (s *OrderStats) RefundRatePercent() (float64, bool) {
	if s.TotalOrders == 0 {
		return 0, false
	}
	return float64(s.RefundedOrders) / float64(s.TotalOrders) * 100, true
}
