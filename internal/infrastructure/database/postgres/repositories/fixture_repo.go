package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/LumiGrid/internal/domain/catalog"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
)

// PgxPool is the subset of *pgxpool.Pool the catalog needs.
type PgxPool interface {
	postgres.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var fixtureCopyColumns = []string{
	"id", "manufacturer", "model", "ppf", "wattage", "efficacy", "beam_angle", "created_at",
}

type postgresFixtureRepo struct {
	pool   PgxPool
	logger logging.Logger
	hook   QueryHook
}

// NewPostgresFixtureRepo stores catalog entries in fixture_models. Models are
// unique per (manufacturer, model); writes for an existing pair update it.
func NewPostgresFixtureRepo(pool PgxPool, log logging.Logger, hook QueryHook) catalog.Repository {
	if hook == nil {
		hook = nopHook
	}
	return &postgresFixtureRepo{pool: pool, logger: orNop(log).Named("fixture_repo"), hook: hook}
}

func (r *postgresFixtureRepo) Get(ctx context.Context, id string) (_ *catalog.FixtureModel, err error) {
	defer observe(r.hook, "fixtures.get", time.Now(), &err)

	m, err := scanFixture(r.pool.QueryRow(ctx, `
		SELECT id, manufacturer, model, ppf, wattage, efficacy, beam_angle, created_at
		FROM fixture_models WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, apperrors.ErrCodeFixtureModelNotFound, "fixture model "+id)
	}
	return m, nil
}

func (r *postgresFixtureRepo) List(ctx context.Context, limit, offset int) (_ []*catalog.FixtureModel, _ int64, err error) {
	defer observe(r.hook, "fixtures.list", time.Now(), &err)
	limit, offset = clampPage(limit, offset)

	var total int64
	if err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fixture_models`).Scan(&total); err != nil {
		return nil, 0, translate(err, apperrors.ErrCodeFixtureModelNotFound, "failed to count fixture models")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, manufacturer, model, ppf, wattage, efficacy, beam_angle, created_at
		FROM fixture_models ORDER BY manufacturer, model LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, translate(err, apperrors.ErrCodeFixtureModelNotFound, "failed to list fixture models")
	}
	defer rows.Close()

	models := make([]*catalog.FixtureModel, 0, limit)
	for rows.Next() {
		m, serr := scanFixture(rows)
		if serr != nil {
			err = translate(serr, apperrors.ErrCodeFixtureModelNotFound, "failed to scan fixture model")
			return nil, 0, err
		}
		models = append(models, m)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, translate(err, apperrors.ErrCodeFixtureModelNotFound, "failed to iterate fixture models")
	}
	return models, total, nil
}

// Upsert writes m. On a (manufacturer, model) clash the stored row keeps its
// ID and m.ID is updated to match.
func (r *postgresFixtureRepo) Upsert(ctx context.Context, m *catalog.FixtureModel) (err error) {
	defer observe(r.hook, "fixtures.upsert", time.Now(), &err)

	if err = m.Validate(); err != nil {
		return err
	}
	var id string
	err = r.pool.QueryRow(ctx, `
		INSERT INTO fixture_models (id, manufacturer, model, ppf, wattage, efficacy, beam_angle, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (manufacturer, model) DO UPDATE
		SET ppf = EXCLUDED.ppf, wattage = EXCLUDED.wattage,
		    efficacy = EXCLUDED.efficacy, beam_angle = EXCLUDED.beam_angle
		RETURNING id`,
		m.ID, m.Manufacturer, m.Model, m.PPF, m.Wattage, m.Efficacy, m.BeamAngle, m.CreatedAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("fixture upsert failed", logging.String("model", m.DisplayName()), logging.Err(err))
		return translate(err, apperrors.ErrCodeFixtureModelNotFound, "failed to upsert fixture model")
	}
	m.ID = id
	return nil
}

// BulkImport COPYs models into a temporary staging table and merges them in
// one transaction. The last entry wins when the input repeats a pair.
func (r *postgresFixtureRepo) BulkImport(ctx context.Context, models []*catalog.FixtureModel) (n int64, err error) {
	defer observe(r.hook, "fixtures.bulk_import", time.Now(), &err)

	if len(models) == 0 {
		return 0, nil
	}
	rows := make([][]interface{}, 0, len(models))
	for _, m := range models {
		if err = m.Validate(); err != nil {
			return 0, err
		}
		rows = append(rows, []interface{}{
			m.ID, m.Manufacturer, m.Model, m.PPF, m.Wattage, m.Efficacy, m.BeamAngle, m.CreatedAt,
		})
	}

	err = postgres.WithTransaction(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			CREATE TEMP TABLE fixture_models_staging
			(LIKE fixture_models INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
			return translate(err, apperrors.ErrCodeFixtureModelNotFound, "failed to create staging table")
		}
		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"fixture_models_staging"},
			fixtureCopyColumns,
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return translate(err, apperrors.ErrCodeFixtureModelNotFound, "failed to copy fixture models")
		}
		r.logger.Debug("fixture models staged", logging.Int64("rows", copied))

		tag, err := tx.Exec(ctx, `
			INSERT INTO fixture_models (id, manufacturer, model, ppf, wattage, efficacy, beam_angle, created_at)
			SELECT DISTINCT ON (manufacturer, model)
			       id, manufacturer, model, ppf, wattage, efficacy, beam_angle, created_at
			FROM fixture_models_staging
			ORDER BY manufacturer, model, ctid DESC
			ON CONFLICT (manufacturer, model) DO UPDATE
			SET ppf = EXCLUDED.ppf, wattage = EXCLUDED.wattage,
			    efficacy = EXCLUDED.efficacy, beam_angle = EXCLUDED.beam_angle`)
		if err != nil {
			return translate(err, apperrors.ErrCodeFixtureModelNotFound, "failed to merge fixture models")
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("fixture models imported", logging.Int("input", len(models)), logging.Int64("merged", n))
	return n, nil
}

func scanFixture(row scanner) (*catalog.FixtureModel, error) {
	var m catalog.FixtureModel
	if err := row.Scan(&m.ID, &m.Manufacturer, &m.Model, &m.PPF, &m.Wattage, &m.Efficacy, &m.BeamAngle, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
