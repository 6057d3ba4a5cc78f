package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cpmm-sniper/internal/storage"
	"cpmm-sniper/internal/storage/migrations"
	"cpmm-sniper/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container and applies the embedded
// migrations. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to run migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestSeenTokenStore_MarkSeen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSeenTokenStore(pool)
	ctx := context.Background()

	err := store.MarkSeen(ctx, "mint-a", time.Now())
	require.NoError(t, err)

	err = store.MarkSeen(ctx, "mint-a", time.Now())
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.MarkSeen(ctx, "mint-b", time.Now())
	assert.NoError(t, err, "distinct mint should be accepted")
}

func TestSeenTokenStore_EmptyMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSeenTokenStore(pool)

	err := store.MarkSeen(context.Background(), "", time.Now())
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSeenTokenStore_SurvivesReconnect(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, postgres.NewSeenTokenStore(pool).MarkSeen(ctx, "persisted-mint", time.Now()))

	// A fresh store over the same pool still sees the mint.
	err := postgres.NewSeenTokenStore(pool).MarkSeen(ctx, "persisted-mint", time.Now())
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
