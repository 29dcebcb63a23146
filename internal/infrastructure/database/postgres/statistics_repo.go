package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"fraud-risk-engine/internal/domain/fraud"
)

// StatisticsRepository implements fraud.StatisticsRepository
type StatisticsRepository struct {
	db *gorm.DB
}

// NewStatisticsRepository creates a new statistics repository
func NewStatisticsRepository(client *Client) *StatisticsRepository {
	return &StatisticsRepository{db: client.DB()}
}

type groupCount struct {
	Label string
	Total int64
}

// CountAlertsSince counts alerts raised at or after since
func (r *StatisticsRepository) CountAlertsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AlertModel{}).
		Where("created_at >= ?", since.UTC()).
		Count(&count).Error
	return count, err
}

// CountPendingHighRiskOrders counts pending order alerts of high or critical severity
func (r *StatisticsRepository) CountPendingHighRiskOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AlertModel{}).
		Where("status = ? AND order_id IS NOT NULL AND severity IN ?",
			string(fraud.AlertPending),
			[]string{string(fraud.SeverityHigh), string(fraud.SeverityCritical)}).
		Count(&count).Error
	return count, err
}

// CountBlockedUsers counts currently blocked profiles
func (r *StatisticsRepository) CountBlockedUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&RiskProfileModel{}).
		Where("is_blocked = ?", true).
		Count(&count).Error
	return count, err
}

// ReviewCounts returns how many alerts were dismissed and confirmed
func (r *StatisticsRepository) ReviewCounts(ctx context.Context) (int64, int64, error) {
	rows, err := r.groupAlertsBy(ctx, "status")
	if err != nil {
		return 0, 0, err
	}
	return rows[string(fraud.AlertDismissed)], rows[string(fraud.AlertConfirmed)], nil
}

// AlertsBySeverity counts alerts per severity
func (r *StatisticsRepository) AlertsBySeverity(ctx context.Context) (map[fraud.Severity]int64, error) {
	rows, err := r.groupAlertsBy(ctx, "severity")
	if err != nil {
		return nil, err
	}
	out := make(map[fraud.Severity]int64, len(rows))
	for k, v := range rows {
		out[fraud.Severity(k)] = v
	}
	return out, nil
}

// AlertsByType counts alerts per alert type
func (r *StatisticsRepository) AlertsByType(ctx context.Context) (map[fraud.FlagCategory]int64, error) {
	rows, err := r.groupAlertsBy(ctx, "alert_type")
	if err != nil {
		return nil, err
	}
	out := make(map[fraud.FlagCategory]int64, len(rows))
	for k, v := range rows {
		out[fraud.FlagCategory(k)] = v
	}
	return out, nil
}

// AlertTimesSince returns creation times of alerts raised at or after since
func (r *StatisticsRepository) AlertTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&AlertModel{}).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC").
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load alert times: %w", err)
	}
	return times, nil
}

// RuleEffectiveness lists every rule's feedback counters, busiest first
func (r *StatisticsRepository) RuleEffectiveness(ctx context.Context) ([]fraud.RuleEffectiveness, error) {
	var models []RuleModel
	err := r.db.WithContext(ctx).
		Order("trigger_count DESC").
		Order("name ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load rule effectiveness: %w", err)
	}

	out := make([]fraud.RuleEffectiveness, 0, len(models))
	for _, m := range models {
		out = append(out, fraud.RuleEffectiveness{
			RuleID:             m.ID,
			Name:               m.Name,
			RuleType:           fraud.RuleType(m.RuleType),
			IsActive:           m.IsActive,
			TriggerCount:       m.TriggerCount,
			FalsePositiveCount: m.FalsePositiveCount,
			LastTriggeredAt:    m.LastTriggeredAt,
		})
	}
	return out, nil
}

func (r *StatisticsRepository) groupAlertsBy(ctx context.Context, column string) (map[string]int64, error) {
	var rows []groupCount
	err := r.db.WithContext(ctx).Model(&AlertModel{}).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group alerts by %s: %w", column, err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Label] = row.Total
	}
	return out, nil
}
