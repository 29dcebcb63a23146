package rules

import (
	"context"
	"fmt"

	"fraud-risk-engine/internal/domain/activity"
	"fraud-risk-engine/internal/domain/fraud"
)

// VelocityAnalyzer counts recent orders or payment attempts per rule
type VelocityAnalyzer struct {
	activity activity.Reader
}

// NewVelocityAnalyzer creates a velocity analyzer
func NewVelocityAnalyzer(reader activity.Reader) *VelocityAnalyzer {
	return &VelocityAnalyzer{activity: reader}
}

func (a *VelocityAnalyzer) Name() string { return "velocity" }

func (a *VelocityAnalyzer) Applies(*Evaluation) bool { return true }

// Analyze fires when the event count in the rule's window reaches its threshold
func (a *VelocityAnalyzer) Analyze(ctx context.Context, ev *Evaluation) ([]fraud.FraudFlag, error) {
	var flags []fraud.FraudFlag
	for _, rc := range rulesOf[*fraud.VelocityConditions](ev.Rules, fraud.RuleTypeVelocity) {
		since := ev.Now.Add(-rc.cond.Window())

		var (
			count int64
			err   error
			name  string
			noun  string
		)
		switch rc.cond.Metric {
		case fraud.MetricOrdersPerHour:
			count, err = a.activity.CountOrdersSince(ctx, ev.Input.UserID, since)
			name, noun = fraud.FlagHighOrderVelocity, "orders"
		case fraud.MetricPaymentAttempts:
			count, err = a.activity.CountPaymentAttemptsSince(ctx, ev.Input.UserID, since)
			name, noun = fraud.FlagHighPaymentVelocity, "payment attempts"
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", noun, err)
		}

		if count >= int64(rc.cond.Threshold) {
			desc := fmt.Sprintf("%d %s in the last %.1f hours (threshold %d)",
				count, noun, rc.cond.Window().Hours(), rc.cond.Threshold)
			flags = append(flags, fraud.NewRuleFlag(rc.rule, name, fraud.CategoryVelocity, desc))
		}
	}
	return flags, nil
}
