package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/database/postgres"
	"fraud-risk-engine/internal/infrastructure/database/postgres/postgrestest"
)

func TestRiskProfileRepository_GetOrCreate(t *testing.T) {
	client := postgrestest.NewClient(t)
	repo := postgres.NewRiskProfileRepository(client)
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.GetByUserID(ctx, userID)
	assert.ErrorIs(t, err, fraud.ErrRiskProfileNotFound)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.GetOrCreate(ctx, userID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	profile, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, profile.RiskScore)
	assert.Equal(t, fraud.RiskLevelLow, profile.RiskLevel)
	assert.Empty(t, profile.Factors)

	var count int64
	require.NoError(t, client.DB().Model(&postgres.RiskProfileModel{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRiskProfileRepository_BlockNewUserIsCritical(t *testing.T) {
	client := postgrestest.NewClient(t)
	repo := postgres.NewRiskProfileRepository(client)
	ctx := context.Background()

	userID, admin := uuid.New(), uuid.New()
	profile, err := repo.Block(ctx, userID, admin, "chargebacks", nil, time.Now().UTC())
	require.NoError(t, err)

	assert.True(t, profile.IsBlocked)
	assert.Equal(t, 100, profile.RiskScore)
	assert.Equal(t, fraud.RiskLevelCritical, profile.RiskLevel)
	assert.Equal(t, "chargebacks", profile.BlockedReason)
	require.NotNil(t, profile.BlockedAt)
}

func TestRiskProfileRepository_BlockIsIdempotentAndUnblockClears(t *testing.T) {
	client := postgrestest.NewClient(t)
	repo := postgres.NewRiskProfileRepository(client)
	ctx := context.Background()

	userID := uuid.New()
	existing, err := repo.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	until := time.Now().Add(48 * time.Hour).UTC()
	_, err = repo.Block(ctx, userID, uuid.New(), "first", nil, time.Now().UTC())
	require.NoError(t, err)
	second := uuid.New()
	profile, err := repo.Block(ctx, userID, second, "second", &until, time.Now().UTC())
	require.NoError(t, err)

	assert.True(t, profile.IsBlocked)
	assert.Equal(t, existing.RiskScore, profile.RiskScore)
	assert.Equal(t, "second", profile.BlockedReason)
	assert.Equal(t, second, *profile.BlockedBy)
	require.NotNil(t, profile.UnblockAt)

	profile, err = repo.Unblock(ctx, userID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, profile.IsBlocked)
	assert.Nil(t, profile.BlockedAt)
	assert.Nil(t, profile.BlockedBy)
	assert.Nil(t, profile.UnblockAt)
	assert.Empty(t, profile.BlockedReason)

	_, err = repo.Unblock(ctx, uuid.New(), time.Now().UTC())
	assert.ErrorIs(t, err, fraud.ErrRiskProfileNotFound)
}
