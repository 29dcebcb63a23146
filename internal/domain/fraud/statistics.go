package fraud

import (
	"time"

	"github.com/google/uuid"
)

// TrendDays is the length of the daily alert trend
const TrendDays = 7

// RuleEffectiveness summarizes how a rule has performed
type RuleEffectiveness struct {
	RuleID             uuid.UUID  `json:"rule_id"`
	Name               string     `json:"name"`
	RuleType           RuleType   `json:"rule_type"`
	IsActive           bool       `json:"is_active"`
	TriggerCount       int64      `json:"trigger_count"`
	FalsePositiveCount int64      `json:"false_positive_count"`
	LastTriggeredAt    *time.Time `json:"last_triggered_at,omitempty"`
}

// DailyCount is the number of alerts raised on one UTC day
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Statistics is the dashboard summary
type Statistics struct {
	AlertsToday           int64                  `json:"alerts_today"`
	PendingHighRiskOrders int64                  `json:"pending_high_risk_orders"`
	BlockedUsers          int64                  `json:"blocked_users"`
	FalsePositiveRate     float64                `json:"false_positive_rate"`
	AlertsBySeverity      map[Severity]int64     `json:"alerts_by_severity"`
	AlertsByType          map[FlagCategory]int64 `json:"alerts_by_type"`
	DailyTrend            []DailyCount           `json:"daily_trend"`
	RuleEffectiveness     []RuleEffectiveness    `json:"rule_effectiveness"`
	GeneratedAt           time.Time              `json:"generated_at"`
}

// FalsePositiveRate is dismissed/(dismissed+confirmed), or 0 without reviews
func FalsePositiveRate(dismissed, confirmed int64) float64 {
	total := dismissed + confirmed
	if total == 0 {
		return 0
	}
	return float64(dismissed) / float64(total)
}

// StartOfDay truncates t to midnight UTC
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BuildDailyTrend buckets alert times into TrendDays UTC days ending today,
// oldest first. Days without alerts are reported as zero.
func BuildDailyTrend(times []time.Time, now time.Time) []DailyCount {
	today := StartOfDay(now)
	first := today.AddDate(0, 0, -(TrendDays - 1))

	trend := make([]DailyCount, TrendDays)
	for i := range trend {
		trend[i].Date = first.AddDate(0, 0, i).Format(time.DateOnly)
	}
	for _, t := range times {
		day := StartOfDay(t)
		if day.Before(first) || day.After(today) {
			continue
		}
		idx := int(day.Sub(first).Hours() / 24)
		trend[idx].Count++
	}
	return trend
}
