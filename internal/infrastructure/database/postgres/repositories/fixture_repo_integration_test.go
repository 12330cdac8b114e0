//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/LumiGrid/internal/domain/catalog"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres/repositories"
	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
)

// startPostgres launches PostgreSQL 16, applies the embedded migrations and
// returns a connected pool.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "lumigrid_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/lumigrid_test?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.NewMigrator(dsn, "").Up())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func mustModel(t *testing.T, manufacturer, model string, ppf float64) *catalog.FixtureModel {
	t.Helper()
	m, err := catalog.NewFixtureModel(manufacturer, model, ppf, 0, 0, 120)
	require.NoError(t, err)
	return m
}

func TestFixtureRepo_Integration(t *testing.T) {
	pool := startPostgres(t)
	repo := repositories.NewPostgresFixtureRepo(pool, nil, nil)
	ctx := context.Background()

	first := mustModel(t, "Fluence", "SPYDR 2p", 1700)
	require.NoError(t, repo.Upsert(ctx, first))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1700.0, got.PPF)

	// Same pair under a new ID updates the stored row and adopts its ID.
	again := mustModel(t, "Fluence", "SPYDR 2p", 1800)
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, first.ID, again.ID)

	n, err := repo.BulkImport(ctx, []*catalog.FixtureModel{
		mustModel(t, "Gavita", "1700e", 1700),
		mustModel(t, "Gavita", "1930e", 2100),
		mustModel(t, "Gavita", "1930e", 2150),
		mustModel(t, "Fluence", "SPYDR 2p", 1750),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	models, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, models, 3)
	assert.Equal(t, "Fluence", models[0].Manufacturer)
	assert.Equal(t, 1750.0, models[0].PPF)
	assert.Equal(t, 2150.0, models[2].PPF)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeFixtureModelNotFound))
}
