// Package repositories implements the domain repositories on PostgreSQL.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// queryExecutor abstracts *sql.DB and *sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts *sql.Row, *sql.Rows and pgx.Row.
type scanner interface {
	Scan(dest ...interface{}) error
}

// QueryHook observes every repository call, typically feeding the
// db_query_duration_seconds histogram.
type QueryHook func(operation string, elapsed time.Duration, err error)

func nopHook(string, time.Duration, error) {}

// observe times a call: defer observe(hook, "runs.get", time.Now(), &err).
func observe(hook QueryHook, op string, start time.Time, err *error) {
	hook(op, time.Since(start), *err)
}

// translate maps driver errors onto AppError codes. notFound is returned for
// empty result sets.
func translate(err error, notFound apperrors.ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return apperrors.Wrap(err, notFound, msg+": not found")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, msg+": already exists").WithDetail(pqErr.Constraint)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, msg+": already exists").WithDetail(pgErr.ConstraintName)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, msg)
}

func clampPage(limit, offset int) (int, int) {
	p := common.NewPagination(limit, offset)
	return p.Limit, p.Offset
}

func orNop(log logging.Logger) logging.Logger {
	if log == nil {
		return logging.NewNopLogger()
	}
	return log
}
