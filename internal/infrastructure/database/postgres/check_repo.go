package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fraud-risk-engine/internal/domain/fraud"
)

// CheckRepository implements fraud.CheckRepository
type CheckRepository struct {
	db *gorm.DB
}

// NewCheckRepository creates a new check repository
func NewCheckRepository(client *Client) *CheckRepository {
	return &CheckRepository{db: client.DB()}
}

// RecordCheck commits every side effect of a check or none of them
func (r *CheckRepository) RecordCheck(ctx context.Context, record *fraud.CheckRecord) error {
	logModel, err := checkLogToModel(record.Log)
	if err != nil {
		return err
	}
	var alertModel *AlertModel
	if record.Alert != nil {
		if alertModel, err = alertToModel(record.Alert); err != nil {
			return err
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(logModel).Error; err != nil {
			return fmt.Errorf("failed to append check log: %w", err)
		}

		if alertModel != nil {
			if err := tx.Create(alertModel).Error; err != nil {
				return fmt.Errorf("failed to create alert: %w", err)
			}
		}

		if record.Profile != nil {
			if err := updateProfileFromCheck(tx, record); err != nil {
				return err
			}
		}

		if len(record.TriggeredRules) > 0 {
			err := tx.Model(&RuleModel{}).
				Where("id IN ?", record.TriggeredRules).
				UpdateColumns(map[string]interface{}{
					"trigger_count":     gorm.Expr("trigger_count + 1"),
					"last_triggered_at": record.At,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to bump rule counters: %w", err)
			}
		}
		return nil
	})
}

// updateProfileFromCheck applies the check result guarded by the version
// read at the start of the check
func updateProfileFromCheck(tx *gorm.DB, record *fraud.CheckRecord) error {
	p := record.Profile
	factors, err := json.Marshal(nonNilFactors(p.Factors))
	if err != nil {
		return fmt.Errorf("failed to encode risk factors: %w", err)
	}

	updates := map[string]interface{}{
		"risk_score":      p.RiskScore,
		"risk_level":      string(p.RiskLevel),
		"factors":         string(factors),
		"last_calculated": record.At,
		"updated_at":      record.At,
		"version":         gorm.Expr("version + 1"),
	}
	if len(record.Log.Flags) > 0 {
		updates["flag_count"] = gorm.Expr("flag_count + 1")
	}

	res := tx.Model(&RiskProfileModel{}).
		Where("user_id = ? AND version = ?", p.UserID, p.Version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update risk profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fraud.ErrConcurrentUpdate
	}
	return nil
}

// ListLogs returns check logs newest first
func (r *CheckRepository) ListLogs(ctx context.Context, filter fraud.CheckLogFilter) ([]*fraud.FraudCheckLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&CheckLogModel{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Decision != nil {
		query = query.Where("decision = ?", string(*filter.Decision))
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count check logs: %w", err)
	}

	limit, offset := page(filter.Limit, filter.Offset)
	var models []CheckLogModel
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list check logs: %w", err)
	}

	logs := make([]*fraud.FraudCheckLog, 0, len(models))
	for i := range models {
		log, err := modelToCheckLog(&models[i])
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}
	return logs, total, nil
}

func checkLogToModel(l *fraud.FraudCheckLog) (*CheckLogModel, error) {
	input, err := json.Marshal(l.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode check input: %w", err)
	}
	rules, err := json.Marshal(nonNilIDs(l.TriggeredRules))
	if err != nil {
		return nil, fmt.Errorf("failed to encode triggered rules: %w", err)
	}
	flags, err := encodeStrings(l.Flags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode flags: %w", err)
	}

	return &CheckLogModel{
		ID:               l.ID,
		UserID:           l.UserID,
		OrderID:          l.OrderID,
		CheckType:        string(l.CheckType),
		Input:            string(input),
		RiskScore:        l.RiskScore,
		RiskLevel:        string(l.RiskLevel),
		Decision:         string(l.Decision),
		TriggeredRules:   string(rules),
		Flags:            flags,
		ProcessingTimeMs: l.ProcessingTimeMs,
		IPAddress:        l.IPAddress,
		UserAgent:        l.UserAgent,
		Fingerprint:      l.Fingerprint,
		Degraded:         l.Degraded,
		CreatedAt:        l.CreatedAt,
	}, nil
}

func modelToCheckLog(m *CheckLogModel) (*fraud.FraudCheckLog, error) {
	l := &fraud.FraudCheckLog{
		ID:               m.ID,
		UserID:           m.UserID,
		OrderID:          m.OrderID,
		CheckType:        fraud.CheckType(m.CheckType),
		RiskScore:        m.RiskScore,
		RiskLevel:        fraud.RiskLevel(m.RiskLevel),
		Decision:         fraud.Recommendation(m.Decision),
		ProcessingTimeMs: m.ProcessingTimeMs,
		IPAddress:        m.IPAddress,
		UserAgent:        m.UserAgent,
		Fingerprint:      m.Fingerprint,
		Degraded:         m.Degraded,
		CreatedAt:        m.CreatedAt,
		TriggeredRules:   []uuid.UUID{},
		Flags:            []string{},
	}
	if m.Input != "" && m.Input != "null" {
		l.Input = &fraud.FraudCheckInput{}
		if err := json.Unmarshal([]byte(m.Input), l.Input); err != nil {
			return nil, fmt.Errorf("check log %s: failed to decode input: %w", m.ID, err)
		}
	}
	if m.TriggeredRules != "" {
		if err := json.Unmarshal([]byte(m.TriggeredRules), &l.TriggeredRules); err != nil {
			return nil, fmt.Errorf("check log %s: failed to decode rules: %w", m.ID, err)
		}
	}
	flags, err := decodeStrings(m.Flags)
	if err != nil {
		return nil, err
	}
	if flags != nil {
		l.Flags = flags
	}
	return l, nil
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
