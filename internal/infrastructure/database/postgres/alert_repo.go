package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fraud-risk-engine/internal/domain/fraud"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// AlertRepository implements fraud.AlertRepository
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(client *Client) *AlertRepository {
	return &AlertRepository{db: client.DB()}
}

// GetByID retrieves an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*fraud.FraudAlert, error) {
	return getAlert(r.db.WithContext(ctx), id)
}

// List returns alerts newest first
func (r *AlertRepository) List(ctx context.Context, filter fraud.AlertFilter) ([]*fraud.FraudAlert, int64, error) {
	query := r.db.WithContext(ctx).Model(&AlertModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", string(*filter.Severity))
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	limit, offset := page(filter.Limit, filter.Offset)
	var models []AlertModel
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}

	alerts := make([]*fraud.FraudAlert, 0, len(models))
	for i := range models {
		alert, err := modelToAlert(&models[i])
		if err != nil {
			return nil, 0, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, total, nil
}

// Review resolves a pending alert. The status change is conditional on the
// alert still being pending, so concurrent reviewers cannot both succeed.
func (r *AlertRepository) Review(ctx context.Context, id, reviewerID uuid.UUID, input fraud.ReviewInput, at time.Time) (*fraud.ReviewOutcome, error) {
	status, err := input.Decision.Status()
	if err != nil {
		return nil, err
	}
	confirmed := status == fraud.AlertConfirmed
	blockUser := confirmed && input.BlockUser

	var outcome fraud.ReviewOutcome
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&AlertModel{}).
			Where("id = ? AND status = ?", id, string(fraud.AlertPending)).
			Updates(map[string]interface{}{
				"status":           string(status),
				"reviewed_by":      reviewerID,
				"reviewed_at":      at,
				"resolution_notes": input.Notes,
				"user_blocked":     blockUser,
				"order_cancelled":  confirmed && input.CancelOrder,
				"refund_issued":    confirmed && input.IssueRefund,
				"updated_at":       at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update alert: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			if _, err := getAlert(tx, id); err != nil {
				return err
			}
			return fraud.ErrAlertAlreadyReviewed
		}

		alert, err := getAlert(tx, id)
		if err != nil {
			return err
		}
		outcome.Alert = alert
		outcome.UserBlocked = blockUser

		if err := ensureProfile(tx, alert.UserID, at); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		}
		if confirmed {
			updates["confirmed_fraud_count"] = gorm.Expr("confirmed_fraud_count + 1")
			if blockUser {
				updates["is_blocked"] = true
				updates["blocked_at"] = at
				updates["blocked_by"] = reviewerID
				updates["blocked_reason"] = reviewBlockReason(alert, input.Notes)
			}
		} else {
			updates["dismissed_alert_count"] = gorm.Expr("dismissed_alert_count + 1")
		}
		if err := tx.Model(&RiskProfileModel{}).Where("user_id = ?", alert.UserID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update risk profile: %w", err)
		}

		if !confirmed && alert.RuleID != nil {
			err := tx.Model(&RuleModel{}).
				Where("id = ?", *alert.RuleID).
				UpdateColumn("false_positive_count", gorm.Expr("false_positive_count + 1")).Error
			if err != nil {
				return fmt.Errorf("failed to record false positive: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func reviewBlockReason(alert *fraud.FraudAlert, notes string) string {
	if notes != "" {
		return notes
	}
	return fmt.Sprintf("confirmed fraud on alert %s", alert.ID)
}

func getAlert(db *gorm.DB, id uuid.UUID) (*fraud.FraudAlert, error) {
	var model AlertModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fraud.ErrAlertNotFound
		}
		return nil, err
	}
	return modelToAlert(&model)
}

func alertToModel(a *fraud.FraudAlert) (*AlertModel, error) {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert details: %w", err)
	}
	return &AlertModel{
		ID:              a.ID,
		CheckID:         a.CheckID,
		UserID:          a.UserID,
		OrderID:         a.OrderID,
		RuleID:          a.RuleID,
		AlertType:       string(a.AlertType),
		Severity:        string(a.Severity),
		Details:         string(details),
		RiskScore:       a.RiskScore,
		Status:          string(a.Status),
		ReviewedBy:      a.ReviewedBy,
		ReviewedAt:      a.ReviewedAt,
		ResolutionNotes: a.ResolutionNotes,
		UserBlocked:     a.UserBlocked,
		OrderCancelled:  a.OrderCancelled,
		RefundIssued:    a.RefundIssued,
		IPAddress:       a.IPAddress,
		UserAgent:       a.UserAgent,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

func modelToAlert(m *AlertModel) (*fraud.FraudAlert, error) {
	var details fraud.AlertDetails
	if m.Details != "" {
		if err := json.Unmarshal([]byte(m.Details), &details); err != nil {
			return nil, fmt.Errorf("alert %s: failed to decode details: %w", m.ID, err)
		}
	}
	return &fraud.FraudAlert{
		ID:              m.ID,
		CheckID:         m.CheckID,
		UserID:          m.UserID,
		OrderID:         m.OrderID,
		RuleID:          m.RuleID,
		AlertType:       fraud.FlagCategory(m.AlertType),
		Severity:        fraud.Severity(m.Severity),
		Details:         details,
		RiskScore:       m.RiskScore,
		Status:          fraud.AlertStatus(m.Status),
		ReviewedBy:      m.ReviewedBy,
		ReviewedAt:      m.ReviewedAt,
		ResolutionNotes: m.ResolutionNotes,
		UserBlocked:     m.UserBlocked,
		OrderCancelled:  m.OrderCancelled,
		RefundIssued:    m.RefundIssued,
		IPAddress:       m.IPAddress,
		UserAgent:       m.UserAgent,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
