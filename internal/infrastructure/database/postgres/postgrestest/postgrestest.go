// Package postgrestest provides in-memory databases for repository tests.
package postgrestest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"fraud-risk-engine/internal/infrastructure/database/postgres"
)

// NewClient returns a migrated in-memory SQLite client that is closed
// when the test ends
func NewClient(t testing.TB) *postgres.Client {
	t.Helper()

	client, err := postgres.Open(sqlite.Open(":memory:"), nil)
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, client.AutoMigrate())
	require.NoError(t, client.AutoMigrateActivity())

	t.Cleanup(func() { _ = client.Close() })
	return client
}
