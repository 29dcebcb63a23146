package rules

import (
	"context"
	"fmt"

	"fraud-risk-engine/internal/domain/activity"
	"fraud-risk-engine/internal/domain/fraud"
)

// PaymentAnalyzer checks failed attempts and transaction amount bounds
type PaymentAnalyzer struct {
	activity activity.Reader
}

// NewPaymentAnalyzer creates a payment analyzer
func NewPaymentAnalyzer(reader activity.Reader) *PaymentAnalyzer {
	return &PaymentAnalyzer{activity: reader}
}

func (a *PaymentAnalyzer) Name() string { return "payment" }

// Applies requires payment info
func (a *PaymentAnalyzer) Applies(ev *Evaluation) bool {
	return ev.Input.Payment != nil
}

func (a *PaymentAnalyzer) Analyze(ctx context.Context, ev *Evaluation) ([]fraud.FraudFlag, error) {
	amount := ev.Input.Payment.Amount

	var flags []fraud.FraudFlag
	for _, rc := range rulesOf[*fraud.PaymentConditions](ev.Rules, fraud.RuleTypePayment) {
		c := rc.cond

		if c.MaxFailedAttempts != nil {
			failed, err := a.activity.CountFailedPaymentsSince(ctx, ev.Input.UserID, ev.Now.Add(-c.Window()))
			if err != nil {
				return nil, fmt.Errorf("failed to count failed payments: %w", err)
			}
			if failed >= int64(*c.MaxFailedAttempts) {
				desc := fmt.Sprintf("%d failed payments in the last %.1f hours (limit %d)",
					failed, c.Window().Hours(), *c.MaxFailedAttempts)
				flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagExcessiveFailedPayments, fraud.CategoryPayment, desc))
			}
		}

		if c.FlagSmallTransactions && c.MinTransactionAmount != nil && amount.LessThan(*c.MinTransactionAmount) {
			desc := fmt.Sprintf("amount %s is below %s", amount.StringFixed(2), c.MinTransactionAmount.StringFixed(2))
			flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagSmallTransaction, fraud.CategoryPayment, desc))
		}
		if c.MaxTransactionAmount != nil && amount.GreaterThan(*c.MaxTransactionAmount) {
			desc := fmt.Sprintf("amount %s exceeds %s", amount.StringFixed(2), c.MaxTransactionAmount.StringFixed(2))
			flags = append(flags, fraud.NewRuleFlag(rc.rule, fraud.FlagLargeTransaction, fraud.CategoryPayment, desc))
		}
	}
	return flags, nil
}
