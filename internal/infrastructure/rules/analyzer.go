package rules

import (
	"context"
	"time"

	"fraud-risk-engine/internal/domain/activity"
	"fraud-risk-engine/internal/domain/fraud"
)

// Evaluation is the shared, read-only input of one check's analyzers
type Evaluation struct {
	Input *fraud.FraudCheckInput
	User  *activity.UserSnapshot
	// Rules holds the active rules already filtered for this input and user
	Rules []*fraud.FraudRule
	Now   time.Time
}

// Analyzer turns one signal family into flags
type Analyzer interface {
	// Name identifies the analyzer in logs and metrics
	Name() string

	// Applies reports whether the input carries what the analyzer needs
	Applies(ev *Evaluation) bool

	Analyze(ctx context.Context, ev *Evaluation) ([]fraud.FraudFlag, error)
}

// ApplicableRules keeps the rules whose order-type and role filters admit
// the check
func ApplicableRules(rules []*fraud.FraudRule, input *fraud.FraudCheckInput, user *activity.UserSnapshot) []*fraud.FraudRule {
	role := ""
	if user != nil {
		role = user.Role
	}
	out := make([]*fraud.FraudRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive && r.AppliesTo(input, role) {
			out = append(out, r)
		}
	}
	return out
}

// ruleWith pairs a rule with its decoded conditions variant
type ruleWith[C fraud.Conditions] struct {
	rule *fraud.FraudRule
	cond C
}

// rulesOf selects the rules of one type whose conditions decode to C
func rulesOf[C fraud.Conditions](rules []*fraud.FraudRule, ruleType fraud.RuleType) []ruleWith[C] {
	var out []ruleWith[C]
	for _, r := range rules {
		if r.Type != ruleType {
			continue
		}
		c, ok := r.Conditions.(C)
		if !ok {
			continue
		}
		out = append(out, ruleWith[C]{rule: r, cond: c})
	}
	return out
}
