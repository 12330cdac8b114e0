package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/turtacn/LumiGrid/internal/domain/calculation"
	"github.com/turtacn/LumiGrid/internal/domain/photometry"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
)

const runColumns = `id, status, request_hash, fixture_count, room_width, room_length, room_height,
	base_resolution, effective_resolution, photoperiod_hours, statistics, report_key, error,
	duration_ms, created_at, updated_at, completed_at`

type postgresRunRepo struct {
	conn   *postgres.Connection
	logger logging.Logger
	hook   QueryHook
}

// RunRepoOption customises the run repository.
type RunRepoOption func(*postgresRunRepo)

// WithRunQueryHook observes every query.
func WithRunQueryHook(h QueryHook) RunRepoOption {
	return func(r *postgresRunRepo) {
		if h != nil {
			r.hook = h
		}
	}
}

// NewPostgresRunRepo stores runs in calculation_runs.
func NewPostgresRunRepo(conn *postgres.Connection, log logging.Logger, opts ...RunRepoOption) calculation.Repository {
	r := &postgresRunRepo{conn: conn, logger: orNop(log).Named("run_repo"), hook: nopHook}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// marshalStats returns a JSONB text argument, or nil for NULL.
func marshalStats(s *photometry.Statistics) (interface{}, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode statistics")
	}
	return string(b), nil
}

func (r *postgresRunRepo) Create(ctx context.Context, run *calculation.Run) (err error) {
	defer observe(r.hook, "runs.create", time.Now(), &err)

	stats, err := marshalStats(run.Statistics)
	if err != nil {
		return err
	}
	query := `INSERT INTO calculation_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = r.conn.DB().ExecContext(ctx, query,
		run.ID, string(run.Status), run.RequestHash, run.FixtureCount,
		run.RoomWidth, run.RoomLength, run.RoomHeight,
		run.BaseResolution, run.EffectiveResolution, run.PhotoperiodHours,
		stats, run.ReportKey, run.Error, run.DurationMillis,
		run.CreatedAt, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		r.logger.Error("failed to insert run", logging.String("run_id", run.ID), logging.Err(err))
		return translate(err, apperrors.ErrCodeRunNotFound, "failed to create run")
	}
	return nil
}

func (r *postgresRunRepo) Update(ctx context.Context, run *calculation.Run) (err error) {
	defer observe(r.hook, "runs.update", time.Now(), &err)

	stats, err := marshalStats(run.Statistics)
	if err != nil {
		return err
	}
	res, err := r.conn.DB().ExecContext(ctx, `
		UPDATE calculation_runs
		SET status = $2, effective_resolution = $3, statistics = $4, report_key = $5,
		    error = $6, duration_ms = $7, updated_at = $8, completed_at = $9
		WHERE id = $1`,
		run.ID, string(run.Status), run.EffectiveResolution, stats, run.ReportKey,
		run.Error, run.DurationMillis, run.UpdatedAt, run.CompletedAt,
	)
	if err != nil {
		return translate(err, apperrors.ErrCodeRunNotFound, "failed to update run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, apperrors.ErrCodeRunNotFound, "failed to update run")
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrCodeRunNotFound, "run %s not found", run.ID)
	}
	return nil
}

func (r *postgresRunRepo) Get(ctx context.Context, id string) (_ *calculation.Run, err error) {
	defer observe(r.hook, "runs.get", time.Now(), &err)

	row := r.conn.DB().QueryRowContext(ctx, `SELECT `+runColumns+` FROM calculation_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, translate(err, apperrors.ErrCodeRunNotFound, "run "+id)
	}
	return run, nil
}

func (r *postgresRunRepo) List(ctx context.Context, limit, offset int) (_ []*calculation.Run, _ int64, err error) {
	defer observe(r.hook, "runs.list", time.Now(), &err)
	limit, offset = clampPage(limit, offset)

	var total int64
	if err = r.conn.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM calculation_runs`).Scan(&total); err != nil {
		return nil, 0, translate(err, apperrors.ErrCodeRunNotFound, "failed to count runs")
	}

	rows, err := r.conn.DB().QueryContext(ctx,
		`SELECT `+runColumns+` FROM calculation_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, translate(err, apperrors.ErrCodeRunNotFound, "failed to list runs")
	}
	defer rows.Close()

	runs := make([]*calculation.Run, 0, limit)
	for rows.Next() {
		run, serr := scanRun(rows)
		if serr != nil {
			err = translate(serr, apperrors.ErrCodeRunNotFound, "failed to scan run")
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, translate(err, apperrors.ErrCodeRunNotFound, "failed to iterate runs")
	}
	return runs, total, nil
}

func scanRun(row scanner) (*calculation.Run, error) {
	var (
		run         calculation.Run
		status      string
		stats       []byte
		reportKey   sql.NullString
		errText     sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(
		&run.ID, &status, &run.RequestHash, &run.FixtureCount,
		&run.RoomWidth, &run.RoomLength, &run.RoomHeight,
		&run.BaseResolution, &run.EffectiveResolution, &run.PhotoperiodHours,
		&stats, &reportKey, &errText, &run.DurationMillis,
		&run.CreatedAt, &run.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = calculation.Status(status)
	run.ReportKey = reportKey.String
	run.Error = errText.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if len(stats) > 0 {
		var s photometry.Statistics
		if err := json.Unmarshal(stats, &s); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "corrupt statistics column")
		}
		run.Statistics = &s
	}
	return &run, nil
}
