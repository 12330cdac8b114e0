package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LumiGrid/internal/config"
	pkgerrors "github.com/turtacn/LumiGrid/pkg/errors"
)

func stubOpen(t *testing.T, db *sql.DB, err error) *string {
	t.Helper()
	var gotDSN string
	orig := sqlOpen
	sqlOpen = func(_, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, err
	}
	t.Cleanup(func() { sqlOpen = orig })
	return &gotDSN
}

func testDBConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "lumigrid", Password: "pw",
		DBName: "lumigrid", SSLMode: "disable",
	}
}

func TestNewConnection_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	dsn := stubOpen(t, db, nil)
	mock.ExpectPing()

	conn, err := NewConnection(testDBConfig(), nil)
	require.NoError(t, err)
	assert.Same(t, db, conn.DB())
	assert.Equal(t, "postgres://lumigrid:pw@localhost:5432/lumigrid?sslmode=disable", *dsn)
	assert.Equal(t, 25, conn.Stats().MaxOpenConnections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_PingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	stubOpen(t, db, nil)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	conn, err := NewConnection(testDBConfig(), nil)
	require.Error(t, err)
	assert.Nil(t, conn)

	var appErr *pkgerrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.ErrCodeDatabaseError, appErr.Code)
	assert.Contains(t, appErr.Cause.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_OpenFailure(t *testing.T) {
	stubOpen(t, nil, errors.New("open failed"))

	conn, err := NewConnection(testDBConfig(), nil)
	assert.Nil(t, conn)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestConnection_HealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pingErr error
		wantErr bool
	}{
		{"healthy", nil, false},
		{"unreachable", errors.New("timeout"), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectPing().WillReturnError(tt.pingErr)
			err = NewConnectionWithDB(db, nil).HealthCheck(context.Background())
			if tt.wantErr {
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConnection_CloseIdempotent(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	conn := NewConnectionWithDB(db, nil)
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
