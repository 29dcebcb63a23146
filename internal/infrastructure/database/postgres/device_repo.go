package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fraud-risk-engine/internal/domain/fraud"
)

// DeviceRepository implements fraud.DeviceRepository
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(client *Client) *DeviceRepository {
	return &DeviceRepository{db: client.DB()}
}

// CountUsersForFingerprint counts distinct users recorded with a fingerprint
func (r *DeviceRepository) CountUsersForFingerprint(ctx context.Context, fingerprintHash string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DeviceFingerprintModel{}).
		Where("fingerprint_hash = ?", fingerprintHash).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count device users: %w", err)
	}
	return count, nil
}

// HasFingerprint reports whether the (user, fingerprint) pair has a row
func (r *DeviceRepository) HasFingerprint(ctx context.Context, userID uuid.UUID, fingerprintHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DeviceFingerprintModel{}).
		Where("user_id = ? AND fingerprint_hash = ?", userID, fingerprintHash).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up device: %w", err)
	}
	return count > 0, nil
}

// LatestForUser returns the user's most recently seen device, or nil
func (r *DeviceRepository) LatestForUser(ctx context.Context, userID uuid.UUID) (*fraud.DeviceFingerprint, error) {
	var model DeviceFingerprintModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest device: %w", err)
	}
	return modelToDevice(&model)
}

// Upsert records a sighting; repeat sightings bump session_count
func (r *DeviceRepository) Upsert(ctx context.Context, device *fraud.DeviceFingerprint) error {
	info, err := json.Marshal(device.DeviceInfo)
	if err != nil {
		return fmt.Errorf("failed to encode device info: %w", err)
	}
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	model := &DeviceFingerprintModel{
		ID:              device.ID,
		UserID:          device.UserID,
		FingerprintHash: device.FingerprintHash,
		DeviceInfo:      string(info),
		IPAddress:       device.IPAddress,
		UserAgent:       device.UserAgent,
		FirstSeen:       device.LastSeen,
		LastSeen:        device.LastSeen,
		SessionCount:    1,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "fingerprint_hash"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_seen":     device.LastSeen,
			"ip_address":    device.IPAddress,
			"user_agent":    device.UserAgent,
			"device_info":   string(info),
			"session_count": gorm.Expr("session_count + 1"),
		}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func modelToDevice(m *DeviceFingerprintModel) (*fraud.DeviceFingerprint, error) {
	var info map[string]any
	if m.DeviceInfo != "" && m.DeviceInfo != "null" {
		if err := json.Unmarshal([]byte(m.DeviceInfo), &info); err != nil {
			return nil, fmt.Errorf("device %s: failed to decode info: %w", m.ID, err)
		}
	}
	return &fraud.DeviceFingerprint{
		ID:              m.ID,
		UserID:          m.UserID,
		FingerprintHash: m.FingerprintHash,
		DeviceInfo:      info,
		IPAddress:       m.IPAddress,
		UserAgent:       m.UserAgent,
		FirstSeen:       m.FirstSeen,
		LastSeen:        m.LastSeen,
		SessionCount:    m.SessionCount,
	}, nil
}
