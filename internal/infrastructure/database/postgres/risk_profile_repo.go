package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fraud-risk-engine/internal/domain/fraud"
)

// RiskProfileRepository implements fraud.RiskProfileRepository
type RiskProfileRepository struct {
	db *gorm.DB
}

// NewRiskProfileRepository creates a new risk profile repository
func NewRiskProfileRepository(client *Client) *RiskProfileRepository {
	return &RiskProfileRepository{db: client.DB()}
}

// GetByUserID retrieves a user's profile
func (r *RiskProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskScore, error) {
	return getProfile(r.db.WithContext(ctx), userID)
}

// GetOrCreate returns the profile, inserting a low-risk one when absent.
// Concurrent creators converge on the same row.
func (r *RiskProfileRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*fraud.UserRiskScore, error) {
	db := r.db.WithContext(ctx)
	if err := ensureProfile(db, userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return getProfile(db, userID)
}

// Block marks the user blocked. A user without a profile gets a critical one.
func (r *RiskProfileRepository) Block(ctx context.Context, userID, blockedBy uuid.UUID, reason string, unblockAt *time.Time, at time.Time) (*fraud.UserRiskScore, error) {
	var profile *fraud.UserRiskScore
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := fraud.NewUserRiskScore(userID)
		seed.RiskScore = fraud.MaxRiskScore
		seed.RiskLevel = fraud.RiskLevelCritical
		seed.LastCalculated = at
		seed.CreatedAt = at
		seed.UpdatedAt = at

		model, err := profileToModel(seed)
		if err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(model).Error; err != nil {
			return fmt.Errorf("failed to create risk profile: %w", err)
		}

		err = tx.Model(&RiskProfileModel{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"is_blocked":     true,
				"blocked_at":     at,
				"blocked_by":     blockedBy,
				"blocked_reason": reason,
				"unblock_at":     unblockAt,
				"version":        gorm.Expr("version + 1"),
				"updated_at":     at,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to block user: %w", err)
		}

		profile, err = getProfile(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Unblock clears every block field
func (r *RiskProfileRepository) Unblock(ctx context.Context, userID uuid.UUID, at time.Time) (*fraud.UserRiskScore, error) {
	var profile *fraud.UserRiskScore
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&RiskProfileModel{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"is_blocked":     false,
				"blocked_at":     nil,
				"blocked_by":     nil,
				"blocked_reason": "",
				"unblock_at":     nil,
				"version":        gorm.Expr("version + 1"),
				"updated_at":     at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to unblock user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fraud.ErrRiskProfileNotFound
		}

		var err error
		profile, err = getProfile(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ensureProfile inserts a default profile unless one exists
func ensureProfile(db *gorm.DB, userID uuid.UUID, at time.Time) error {
	seed := fraud.NewUserRiskScore(userID)
	seed.LastCalculated = at
	seed.CreatedAt = at
	seed.UpdatedAt = at

	model, err := profileToModel(seed)
	if err != nil {
		return err
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to create risk profile: %w", err)
	}
	return nil
}

func getProfile(db *gorm.DB, userID uuid.UUID) (*fraud.UserRiskScore, error) {
	var model RiskProfileModel
	if err := db.First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fraud.ErrRiskProfileNotFound
		}
		return nil, err
	}
	return modelToProfile(&model)
}

func profileToModel(p *fraud.UserRiskScore) (*RiskProfileModel, error) {
	factors, err := json.Marshal(nonNilFactors(p.Factors))
	if err != nil {
		return nil, fmt.Errorf("failed to encode risk factors: %w", err)
	}
	return &RiskProfileModel{
		ID:                  p.ID,
		UserID:              p.UserID,
		RiskScore:           p.RiskScore,
		RiskLevel:           string(p.RiskLevel),
		Factors:             string(factors),
		FlagCount:           p.FlagCount,
		ConfirmedFraudCount: p.ConfirmedFraudCount,
		DismissedAlertCount: p.DismissedAlertCount,
		IsBlocked:           p.IsBlocked,
		BlockedAt:           p.BlockedAt,
		BlockedBy:           p.BlockedBy,
		BlockedReason:       p.BlockedReason,
		UnblockAt:           p.UnblockAt,
		LastCalculated:      p.LastCalculated,
		Version:             p.Version,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}, nil
}

func modelToProfile(m *RiskProfileModel) (*fraud.UserRiskScore, error) {
	factors := []fraud.RiskFactor{}
	if m.Factors != "" {
		if err := json.Unmarshal([]byte(m.Factors), &factors); err != nil {
			return nil, fmt.Errorf("risk profile %s: failed to decode factors: %w", m.UserID, err)
		}
	}
	return &fraud.UserRiskScore{
		ID:                  m.ID,
		UserID:              m.UserID,
		RiskScore:           m.RiskScore,
		RiskLevel:           fraud.RiskLevel(m.RiskLevel),
		Factors:             nonNilFactors(factors),
		FlagCount:           m.FlagCount,
		ConfirmedFraudCount: m.ConfirmedFraudCount,
		DismissedAlertCount: m.DismissedAlertCount,
		IsBlocked:           m.IsBlocked,
		BlockedAt:           m.BlockedAt,
		BlockedBy:           m.BlockedBy,
		BlockedReason:       m.BlockedReason,
		UnblockAt:           m.UnblockAt,
		LastCalculated:      m.LastCalculated,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}, nil
}

func nonNilFactors(f []fraud.RiskFactor) []fraud.RiskFactor {
	if f == nil {
		return []fraud.RiskFactor{}
	}
	return f
}
