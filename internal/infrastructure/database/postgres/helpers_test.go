package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/database/postgres"
)

func intPtr(v int) *int { return &v }

func seedUser(t *testing.T, client *postgres.Client, role string, createdAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, client.DB().Create(&postgres.UserModel{
		ID:        id,
		Role:      role,
		Status:    "active",
		CreatedAt: createdAt.UTC(),
	}).Error)
	return id
}

func seedOrder(t *testing.T, client *postgres.Client, userID uuid.UUID, status string, amount int64, at time.Time) {
	t.Helper()
	require.NoError(t, client.DB().Create(&postgres.OrderModel{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      status,
		TotalAmount: decimal.NewFromInt(amount),
		CreatedAt:   at.UTC(),
	}).Error)
}

func seedPayment(t *testing.T, client *postgres.Client, userID uuid.UUID, status string, at time.Time) {
	t.Helper()
	require.NoError(t, client.DB().Create(&postgres.PaymentModel{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    status,
		Amount:    decimal.NewFromInt(10),
		CreatedAt: at.UTC(),
	}).Error)
}

func saveRule(t *testing.T, repo *postgres.RuleRepository, name string, ruleType fraud.RuleType, cond fraud.Conditions, score int) *fraud.FraudRule {
	t.Helper()
	rule := fraud.NewRule(name, ruleType, cond, fraud.SeverityHigh, score)
	require.NoError(t, repo.Save(context.Background(), rule))
	return rule
}

// recordAlert commits a check that raised a pending alert and returns it
func recordAlert(t *testing.T, client *postgres.Client, userID uuid.UUID, ruleID *uuid.UUID, severity fraud.Severity, orderID *uuid.UUID, at time.Time) *fraud.FraudAlert {
	t.Helper()
	input := &fraud.FraudCheckInput{UserID: userID, OrderID: orderID, CheckType: fraud.CheckOrderCreation}
	result := &fraud.FraudCheckResult{
		CheckID:        uuid.New(),
		RiskScore:      70,
		RiskLevel:      fraud.RiskLevelHigh,
		Recommendation: fraud.RecommendReview,
		Flags: []fraud.FraudFlag{{
			Name:     fraud.FlagHighOrderVelocity,
			Category: fraud.CategoryVelocity,
			Score:    40,
			Severity: severity,
			RuleID:   ruleID,
		}},
	}
	result.TriggeredRules = fraud.TriggeredRuleIDs(result.Flags)
	alert := fraud.NewAlertFromResult(input, result, at.UTC())

	repo := postgres.NewCheckRepository(client)
	require.NoError(t, repo.RecordCheck(context.Background(), &fraud.CheckRecord{
		Log:            fraud.NewCheckLog(input, result, at.UTC()),
		Alert:          alert,
		TriggeredRules: result.TriggeredRules,
		At:             at.UTC(),
	}))
	return alert
}
