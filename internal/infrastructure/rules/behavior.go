package rules

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fraud-risk-engine/internal/domain/activity"
	"fraud-risk-engine/internal/domain/fraud"
)

// unusualAmountMultiplier is how far above the historical average an order
// total must be to count as unusual
var unusualAmountMultiplier = decimal.NewFromInt(3)

// BehaviorAnalyzer checks account age, refund history and order size
type BehaviorAnalyzer struct {
	activity activity.Reader
}

// NewBehaviorAnalyzer creates a behavior analyzer
func NewBehaviorAnalyzer(reader activity.Reader) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{activity: reader}
}

func (a *BehaviorAnalyzer) Name() string { return "behavior" }

func (a *BehaviorAnalyzer) Applies(*Evaluation) bool { return true }

func (a *BehaviorAnalyzer) Analyze(ctx context.Context, ev *Evaluation) ([]fraud.FraudFlag, error) {
	rules := rulesOf[*fraud.BehaviorConditions](ev.Rules, fraud.RuleTypeBehavior)
	if len(rules) == 0 {
		return nil, nil
	}

	// order history is loaded at most once per check
	var stats *activity.OrderStats
	orderStats := func() (*activity.OrderStats, error) {
		if stats != nil {
			return stats, nil
		}
		s, err := a.activity.OrderStats(ctx, ev.Input.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load order stats: %w", err)
		}
		stats = s
		return stats, nil
	}

	var flags []fraud.FraudFlag
	for _, rc := range rules {
		c := rc.cond

		if c.MinAccountAgeDays != nil && ev.User != nil {
			age := ev.User.AccountAgeDays(ev.Now)
			if age < *c.MinAccountAgeDays {
				desc := fmt.Sprintf("account is %d days old (minimum %d)", age, *c.MinAccountAgeDays)
				flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagNewAccount, fraud.CategoryBehavior, desc))
			}
		}

		if c.MaxRefundRatePercent != nil {
			s, err := orderStats()
			if err != nil {
				return nil, err
			}
			if rate, ok := s.RefundRatePercent(); ok && rate > *c.MaxRefundRatePercent {
				desc := fmt.Sprintf("refund rate %.1f%% exceeds %.1f%%", rate, *c.MaxRefundRatePercent)
				flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagHighRefundRate, fraud.CategoryBehavior, desc))
			}
		}

		if c.UnusualOrderPatterns && ev.Input.OrderDetails != nil {
			s, err := orderStats()
			if err != nil {
				return nil, err
			}
			total := ev.Input.OrderDetails.TotalAmount
			if s.TotalOrders > 0 && s.AverageAmount.IsPositive() &&
				total.GreaterThanOrEqual(s.AverageAmount.Mul(unusualAmountMultiplier)) {
				desc := fmt.Sprintf("order total %s is at least %s times the average %s",
					total.StringFixed(2), unusualAmountMultiplier.String(), s.AverageAmount.StringFixed(2))
				flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagUnusualOrderAmount, fraud.CategoryBehavior, desc))
			}
		}
	}
	return flags, nil
}
