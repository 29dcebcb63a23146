package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/database/postgres"
	"fraud-risk-engine/internal/infrastructure/database/postgres/postgrestest"
)

func TestStatisticsRepository_Counts(t *testing.T) {
	client := postgrestest.NewClient(t)
	stats := postgres.NewStatisticsRepository(client)
	alerts := postgres.NewAlertRepository(client)
	profiles := postgres.NewRiskProfileRepository(client)
	ctx := context.Background()

	now := time.Now().UTC()
	orderID := uuid.New()
	recordAlert(t, client, uuid.New(), nil, fraud.SeverityHigh, &orderID, now)
	recordAlert(t, client, uuid.New(), nil, fraud.SeverityCritical, &orderID, now)
	recordAlert(t, client, uuid.New(), nil, fraud.SeverityLow, &orderID, now)
	recordAlert(t, client, uuid.New(), nil, fraud.SeverityHigh, nil, now)
	old := recordAlert(t, client, uuid.New(), nil, fraud.SeverityHigh, &orderID, now.AddDate(0, 0, -3))

	_, err := alerts.Review(ctx, old.ID, uuid.New(), fraud.ReviewInput{Decision: fraud.DecisionDismiss}, now)
	require.NoError(t, err)
	_, err = profiles.Block(ctx, uuid.New(), uuid.New(), "x", nil, now)
	require.NoError(t, err)

	today, err := stats.CountAlertsSince(ctx, fraud.StartOfDay(now))
	require.NoError(t, err)
	assert.Equal(t, int64(4), today)

	pending, err := stats.CountPendingHighRiskOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	blocked, err := stats.CountBlockedUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), blocked)

	dismissed, confirmed, err := stats.ReviewCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dismissed)
	assert.Equal(t, int64(0), confirmed)

	bySeverity, err := stats.AlertsBySeverity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bySeverity[fraud.SeverityHigh])
	assert.Equal(t, int64(1), bySeverity[fraud.SeverityCritical])

	byType, err := stats.AlertsByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), byType[fraud.CategoryVelocity])

	times, err := stats.AlertTimesSince(ctx, now.AddDate(0, 0, -6))
	require.NoError(t, err)
	assert.Len(t, times, 5)
}

func TestStatisticsRepository_RuleEffectiveness(t *testing.T) {
	client := postgrestest.NewClient(t)
	stats := postgres.NewStatisticsRepository(client)
	rules := postgres.NewRuleRepository(client)
	ctx := context.Background()

	quiet := saveRule(t, rules, "quiet", fraud.RuleTypeBehavior, &fraud.BehaviorConditions{}, 10)
	busy := saveRule(t, rules, "busy", fraud.RuleTypeBehavior, &fraud.BehaviorConditions{}, 10)
	recordAlert(t, client, uuid.New(), &busy.ID, fraud.SeverityHigh, nil, time.Now())

	eff, err := stats.RuleEffectiveness(ctx)
	require.NoError(t, err)
	require.Len(t, eff, 2)
	assert.Equal(t, busy.ID, eff[0].RuleID)
	assert.Equal(t, int64(1), eff[0].TriggerCount)
	assert.Equal(t, quiet.ID, eff[1].RuleID)
}
