package postgres

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
)

func TestConfigurePool(t *testing.T) {
	t.Parallel()

	t.Run("applies settings", func(t *testing.T) {
		poolCfg := &pgxpool.Config{}
		configurePool(poolCfg, config.DatabaseConfig{
			MaxConns:        50,
			MinConns:        5,
			ConnMaxLifetime: 2 * time.Hour,
			ConnMaxIdleTime: 45 * time.Minute,
		})
		assert.Equal(t, int32(50), poolCfg.MaxConns)
		assert.Equal(t, int32(5), poolCfg.MinConns)
		assert.Equal(t, 2*time.Hour, poolCfg.MaxConnLifetime)
		assert.Equal(t, 45*time.Minute, poolCfg.MaxConnIdleTime)
	})

	t.Run("keeps pgx defaults for zero values", func(t *testing.T) {
		poolCfg := &pgxpool.Config{MaxConns: 4, MaxConnLifetime: time.Hour}
		configurePool(poolCfg, config.DatabaseConfig{})
		assert.Equal(t, int32(4), poolCfg.MaxConns)
		assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
	})
}

func TestConfigureDB(t *testing.T) {
	t.Parallel()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	configureDB(db, config.DatabaseConfig{MaxConns: 12})
	assert.Equal(t, 12, db.Stats().MaxOpenConnections)
}
