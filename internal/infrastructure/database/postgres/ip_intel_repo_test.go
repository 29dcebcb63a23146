package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/infrastructure/database/postgres"
	"fraud-risk-engine/internal/infrastructure/database/postgres/postgrestest"
)

func TestIPIntelligenceRepository_UpsertAndGet(t *testing.T) {
	client := postgrestest.NewClient(t)
	repo := postgres.NewIPIntelligenceRepository(client)
	ctx := context.Background()

	got, err := repo.Get(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.Nil(t, got)

	expires := time.Now().Add(time.Hour).UTC()
	require.NoError(t, repo.Upsert(ctx, &fraud.IPIntelligence{IPAddress: "203.0.113.7", IsVPN: true, Country: "NL", ExpiresAt: expires}))
	require.NoError(t, repo.Upsert(ctx, &fraud.IPIntelligence{IPAddress: "203.0.113.7", IsProxy: true, Country: "DE", ExpiresAt: expires}))

	got, err = repo.Get(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsVPN)
	assert.True(t, got.IsProxy)
	assert.Equal(t, "DE", got.Country)
}
