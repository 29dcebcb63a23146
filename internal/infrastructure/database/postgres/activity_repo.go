package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fraud-risk-engine/internal/domain/activity"
)

// ActivityRepository reads the externally owned users, orders and
// payments tables. It implements activity.Reader and
// activity.AccountStatusUpdater.
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(client *Client) *ActivityRepository {
	return &ActivityRepository{db: client.DB()}
}

// GetUser retrieves a user snapshot
func (r *ActivityRepository) GetUser(ctx context.Context, userID uuid.UUID) (*activity.UserSnapshot, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, activity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &activity.UserSnapshot{
		ID:        model.ID,
		Role:      model.Role,
		Status:    activity.AccountStatus(model.Status),
		CreatedAt: model.CreatedAt,
	}, nil
}

// CountOrdersSince counts orders placed at or after since
func (r *ActivityRepository) CountOrdersSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// CountPaymentAttemptsSince counts payment attempts of any outcome
func (r *ActivityRepository) CountPaymentAttemptsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count payment attempts: %w", err)
	}
	return count, nil
}

// CountFailedPaymentsSince counts failed payments
func (r *ActivityRepository) CountFailedPaymentsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("user_id = ? AND status = ? AND created_at >= ?", userID, activity.PaymentStatusFailed, since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count failed payments: %w", err)
	}
	return count, nil
}

type orderStatsRow struct {
	TotalOrders    int64
	RefundedOrders int64
	AverageAmount  decimal.NullDecimal
}

// OrderStats summarizes the user's whole order history
func (r *ActivityRepository) OrderStats(ctx context.Context, userID uuid.UUID) (*activity.OrderStats, error) {
	var row orderStatsRow
	err := r.db.WithContext(ctx).Model(&OrderModel{}).
		Select(
			"COUNT(*) AS total_orders, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS refunded_orders, "+
				"AVG(total_amount) AS average_amount",
			activity.OrderStatusRefunded,
		).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}

	stats := &activity.OrderStats{
		TotalOrders:    row.TotalOrders,
		RefundedOrders: row.RefundedOrders,
		AverageAmount:  decimal.Zero,
	}
	if row.AverageAmount.Valid {
		stats.AverageAmount = row.AverageAmount.Decimal
	}
	return stats, nil
}

// SetAccountStatus updates users.status
func (r *ActivityRepository) SetAccountStatus(ctx context.Context, userID uuid.UUID, status activity.AccountStatus) error {
	if status != activity.AccountActive && status != activity.AccountSuspended {
		return activity.ErrInvalidAccountStatus
	}
	res := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userID).
		UpdateColumn("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("failed to update account status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return activity.ErrUserNotFound
	}
	return nil
}
