package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fraud-risk-engine/internal/domain/fraud"
)

// IPIntelligenceRepository implements fraud.IPIntelligenceRepository
type IPIntelligenceRepository struct {
	db *gorm.DB
}

// NewIPIntelligenceRepository creates a new IP intelligence repository
func NewIPIntelligenceRepository(client *Client) *IPIntelligenceRepository {
	return &IPIntelligenceRepository{db: client.DB()}
}

// Get returns the stored verdict for an IP, or nil. Expiry is the caller's concern.
func (r *IPIntelligenceRepository) Get(ctx context.Context, ip string) (*fraud.IPIntelligence, error) {
	var model IPIntelligenceModel
	if err := r.db.WithContext(ctx).First(&model, "ip_address = ?", ip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ip intelligence: %w", err)
	}
	return &fraud.IPIntelligence{
		IPAddress: model.IPAddress,
		IsVPN:     model.IsVPN,
		IsProxy:   model.IsProxy,
		Country:   model.Country,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

// Upsert stores or replaces a verdict
func (r *IPIntelligenceRepository) Upsert(ctx context.Context, intel *fraud.IPIntelligence) error {
	model := &IPIntelligenceModel{
		IPAddress: intel.IPAddress,
		IsVPN:     intel.IsVPN,
		IsProxy:   intel.IsProxy,
		Country:   intel.Country,
		ExpiresAt: intel.ExpiresAt.UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_vpn", "is_proxy", "country", "expires_at", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to store ip intelligence: %w", err)
	}
	return nil
}
