package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/LumiGrid/internal/domain/calculation"
	"github.com/turtacn/LumiGrid/internal/domain/photometry"
	"github.com/turtacn/LumiGrid/internal/infrastructure/database/postgres"
	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/LumiGrid/pkg/errors"
)

var runRowColumns = []string{
	"id", "status", "request_hash", "fixture_count", "room_width", "room_length", "room_height",
	"base_resolution", "effective_resolution", "photoperiod_hours", "statistics", "report_key", "error",
	"duration_ms", "created_at", "updated_at", "completed_at",
}

type RunRepoTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	db   *sql.DB
	repo calculation.Repository
	ops  []string
}

func (s *RunRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	s.ops = nil
	log := logging.NewNopLogger()
	conn := postgres.NewConnectionWithDB(s.db, log)
	s.repo = NewPostgresRunRepo(conn, log, WithRunQueryHook(func(op string, _ time.Duration, _ error) {
		s.ops = append(s.ops, op)
	}))
}

func (s *RunRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RunRepoTestSuite) newRun() *calculation.Run {
	return calculation.NewRun("hash-1", 2, photometry.Room{Width: 10, Length: 8, Height: 3}, 20, 16)
}

func (s *RunRepoTestSuite) TestCreate_Success() {
	run := s.newRun()
	s.mock.ExpectExec("INSERT INTO calculation_runs").
		WithArgs(run.ID, "pending", "hash-1", 2, 10.0, 8.0, 3.0, 20, 0, 16.0,
			nil, "", "", int64(0), run.CreatedAt, run.UpdatedAt, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Create(context.Background(), run))
	s.Equal([]string{"runs.create"}, s.ops)
}

func (s *RunRepoTestSuite) TestCreate_Duplicate() {
	run := s.newRun()
	s.mock.ExpectExec("INSERT INTO calculation_runs").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "calculation_runs_pkey"})

	err := s.repo.Create(context.Background(), run)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeConflict))
}

func (s *RunRepoTestSuite) TestUpdate_WritesStatistics() {
	run := s.newRun()
	s.Require().NoError(run.Start())
	grid := &photometry.PhotometricGrid{
		EffectiveResolution: 40,
		Statistics:          photometry.Statistics{Min: 100, Max: 200, Average: 150, Uniformity: 0.67, PointCount: 441},
	}
	s.Require().NoError(run.Complete(grid, 2*time.Second))

	s.mock.ExpectExec("UPDATE calculation_runs").
		WithArgs(run.ID, "completed", 40, sqlmock.AnyArg(), "", "", int64(2000), run.UpdatedAt, *run.CompletedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Update(context.Background(), run))
}

func (s *RunRepoTestSuite) TestUpdate_Missing() {
	run := s.newRun()
	s.mock.ExpectExec("UPDATE calculation_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.Update(context.Background(), run)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeRunNotFound))
}

func (s *RunRepoTestSuite) TestGet_Found() {
	now := time.Now().UTC()
	s.mock.ExpectQuery("SELECT id, status, .* FROM calculation_runs WHERE id = \\$1").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).AddRow(
			"run-1", "completed", "hash", 3, 12.0, 6.0, 3.0, 25, 50, 18.0,
			[]byte(`{"min":10,"max":30,"average":20,"uniformity":0.5,"point_count":676}`),
			"reports/run-1.json", "", int64(820), now, now, now,
		))

	run, err := s.repo.Get(context.Background(), "run-1")
	s.Require().NoError(err)
	s.Equal(calculation.StatusCompleted, run.Status)
	s.Equal("reports/run-1.json", run.ReportKey)
	s.Require().NotNil(run.Statistics)
	s.Equal(0.5, run.Statistics.Uniformity)
	s.Equal(676, run.Statistics.PointCount)
	s.Require().NotNil(run.CompletedAt)
}

func (s *RunRepoTestSuite) TestGet_PendingHasNoStatistics() {
	now := time.Now().UTC()
	s.mock.ExpectQuery("FROM calculation_runs WHERE id").
		WillReturnRows(sqlmock.NewRows(runRowColumns).AddRow(
			"run-2", "pending", "hash", 1, 5.0, 5.0, 2.5, 10, 0, 12.0,
			nil, "", "", int64(0), now, now, nil,
		))

	run, err := s.repo.Get(context.Background(), "run-2")
	s.Require().NoError(err)
	s.Nil(run.Statistics)
	s.Nil(run.CompletedAt)
}

func (s *RunRepoTestSuite) TestGet_NotFound() {
	s.mock.ExpectQuery("FROM calculation_runs WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := s.repo.Get(context.Background(), "nope")
	s.True(apperrors.IsCode(err, apperrors.ErrCodeRunNotFound))
	s.True(apperrors.IsNotFound(err))
}

func (s *RunRepoTestSuite) TestList() {
	now := time.Now().UTC()
	s.mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	s.mock.ExpectQuery("ORDER BY created_at DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("b", "running", "h", 1, 5.0, 5.0, 2.5, 10, 0, 12.0, nil, "", "", int64(0), now, now, nil).
			AddRow("a", "failed", "h", 1, 5.0, 5.0, 2.5, 10, 0, 12.0, nil, "", "boom", int64(4), now, now, now))

	runs, total, err := s.repo.List(context.Background(), 0, -5)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(runs, 2)
	s.Equal("boom", runs[1].Error)
}

func (s *RunRepoTestSuite) TestList_QueryError() {
	s.mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))

	_, _, err := s.repo.List(context.Background(), 10, 0)
	s.True(apperrors.IsCode(err, apperrors.ErrCodeDatabaseError))
	s.Equal([]string{"runs.list"}, s.ops)
}

func TestRunRepoTestSuite(t *testing.T) {
	suite.Run(t, new(RunRepoTestSuite))
}
