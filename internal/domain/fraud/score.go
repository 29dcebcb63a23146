package fraud

import (
	"github.com/google/uuid"
)

const (
	MinRiskScore = 0
	MaxRiskScore = 100

	// SafeDefaultScore is reported when a check cannot be evaluated
	SafeDefaultScore = 50
)

// Risk level lower bounds
const (
	CriticalRiskThreshold = 90
	HighRiskThreshold     = 50
	MediumRiskThreshold   = 25
)

// Recommendation lower bounds
const (
	BlockThreshold  = 80
	ReviewThreshold = 60
)

// ClampScore bounds a score to [0, 100]
func ClampScore(score int) int {
	if score < MinRiskScore {
		return MinRiskScore
	}
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	return score
}

// ClassifyRiskLevel maps a score to its risk band
func ClassifyRiskLevel(score int) RiskLevel {
	switch {
	case score >= CriticalRiskThreshold:
		return RiskLevelCritical
	case score >= HighRiskThreshold:
		return RiskLevelHigh
	case score >= MediumRiskThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// Recommend maps a score to the caller-facing decision
func Recommend(score int) Recommendation {
	switch {
	case score >= BlockThreshold:
		return RecommendBlock
	case score >= ReviewThreshold:
		return RecommendReview
	default:
		return RecommendAllow
	}
}

// AggregateScore adds flag scores to the baseline and clamps the sum
func AggregateScore(baseline int, flags []FraudFlag) int {
	total := baseline
	for _, f := range flags {
		total += f.Score
	}
	return ClampScore(total)
}

// TriggeredRuleIDs returns the distinct rule ids referenced by flags, in flag order
func TriggeredRuleIDs(flags []FraudFlag) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(flags))
	ids := make([]uuid.UUID, 0, len(flags))
	for _, f := range flags {
		if f.RuleID == nil {
			continue
		}
		if _, ok := seen[*f.RuleID]; ok {
			continue
		}
		seen[*f.RuleID] = struct{}{}
		ids = append(ids, *f.RuleID)
	}
	return ids
}

// SafeDefaultResult is the fixed outcome used when scoring fails.
// It is deliberately not derived from the classification thresholds.
func SafeDefaultResult(checkID uuid.UUID, processingTimeMs int64) *FraudCheckResult {
	return &FraudCheckResult{
		CheckID:        checkID,
		RiskScore:      SafeDefaultScore,
		RiskLevel:      RiskLevelMedium,
		Recommendation: RecommendReview,
		Flags: []FraudFlag{{
			Name:        FlagSystemError,
			Category:    CategorySystem,
			Score:       0,
			Severity:    SeverityMedium,
			Description: "Risk evaluation failed; manual review required",
		}},
		TriggeredRules:   []uuid.UUID{},
		ProcessingTimeMs: processingTimeMs,
		Degraded:         true,
	}
}
