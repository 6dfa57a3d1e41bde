package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDatabase is a migrated Postgres running in a container
type TestDatabase struct {
	Pool    *pgxpool.Pool
	ConnStr string
	cleanup func()
}

// Close closes the pool and terminates the container
func (db *TestDatabase) Close() {
	if db.cleanup != nil {
		db.cleanup()
	}
}

// NewTestDatabase starts Postgres, applies the goose migrations in
// migrationsDir and returns a ready pool
func NewTestDatabase(t *testing.T, migrationsDir string) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ledger"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "Failed to create connection pool")

	runMigrations(t, pool, migrationsDir)

	return &TestDatabase{
		Pool:    pool,
		ConnStr: connStr,
		cleanup: func() {
			pool.Close()
			if err := container.Terminate(ctx); err != nil {
				t.Logf("Failed to terminate postgres container: %v", err)
			}
		},
	}
}

func runMigrations(t *testing.T, pool *pgxpool.Pool, migrationsDir string) {
	t.Helper()

	// Goose needs a *sql.DB
	db, err := sql.Open("pgx", stdlib.RegisterConnConfig(pool.Config().ConnConfig))
	require.NoError(t, err, "Failed to create sql.DB for goose")
	defer db.Close()

	require.NoError(t, goose.SetDialect("postgres"))

	absPath, err := filepath.Abs(migrationsDir)
	require.NoError(t, err)
	require.NoError(t, goose.Up(db, absPath), "Failed to run migrations")
}

// CleanDatabase truncates every ledger table between tests
func CleanDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	_, err := pool.Exec(ctx, "TRUNCATE TABLE bids, items, auctions, outbox_events CASCADE")
	require.NoError(t, err, "Failed to truncate tables")
}
