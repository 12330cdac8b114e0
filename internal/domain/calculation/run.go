// Package calculation tracks calculation runs: their lifecycle, summary
// statistics and where the full report is stored.
package calculation

import (
	"context"
	"time"

	"github.com/turtacn/LumiGrid/internal/domain/photometry"
	"github.com/turtacn/LumiGrid/pkg/errors"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one calculation, synchronous or queued.
type Run struct {
	ID                  string                 `json:"id"`
	Status              Status                 `json:"status"`
	RequestHash         string                 `json:"request_hash"`
	FixtureCount        int                    `json:"fixture_count"`
	RoomWidth           float64                `json:"room_width"`
	RoomLength          float64                `json:"room_length"`
	RoomHeight          float64                `json:"room_height"`
	BaseResolution      int                    `json:"base_resolution"`
	EffectiveResolution int                    `json:"effective_resolution"`
	PhotoperiodHours    float64                `json:"photoperiod_hours"`
	Statistics          *photometry.Statistics `json:"statistics,omitempty"`
	ReportKey           string                 `json:"report_key,omitempty"`
	Error               string                 `json:"error,omitempty"`
	DurationMillis      int64                  `json:"duration_ms"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	CompletedAt         *time.Time             `json:"completed_at,omitempty"`
}

// NewRun creates a pending run.
func NewRun(requestHash string, fixtureCount int, room photometry.Room, resolution int, hours float64) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:               string(common.NewID()),
		Status:           StatusPending,
		RequestHash:      requestHash,
		FixtureCount:     fixtureCount,
		RoomWidth:        room.Width,
		RoomLength:       room.Length,
		RoomHeight:       room.Height,
		BaseResolution:   resolution,
		PhotoperiodHours: hours,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Start moves a pending run to running.
func (r *Run) Start() error {
	if r.Status != StatusPending {
		return errors.Newf(errors.ErrCodeConflict, "run %s cannot start from %s", r.ID, r.Status)
	}
	r.Status = StatusRunning
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete records a successful result.
func (r *Run) Complete(grid *photometry.PhotometricGrid, elapsed time.Duration) error {
	if r.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeConflict, "run %s already %s", r.ID, r.Status)
	}
	stats := grid.Statistics
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.Statistics = &stats
	r.EffectiveResolution = grid.EffectiveResolution
	r.DurationMillis = elapsed.Milliseconds()
	r.UpdatedAt = now
	r.CompletedAt = &now
	return nil
}

// Fail records a failure reason.
func (r *Run) Fail(cause error, elapsed time.Duration) error {
	if r.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeConflict, "run %s already %s", r.ID, r.Status)
	}
	now := time.Now().UTC()
	r.Status = StatusFailed
	if cause != nil {
		r.Error = cause.Error()
	}
	r.DurationMillis = elapsed.Milliseconds()
	r.UpdatedAt = now
	r.CompletedAt = &now
	return nil
}

// Summary is the searchable projection of a completed run.
type Summary struct {
	RunID          string    `json:"run_id"`
	Status         Status    `json:"status"`
	FixtureCount   int       `json:"fixture_count"`
	RoomArea       float64   `json:"room_area"`
	BaseResolution int       `json:"base_resolution"`
	PointCount     int       `json:"point_count"`
	MinPPFD        float64   `json:"min_ppfd"`
	MaxPPFD        float64   `json:"max_ppfd"`
	AveragePPFD    float64   `json:"average_ppfd"`
	Uniformity     float64   `json:"uniformity"`
	Coverage       float64   `json:"coverage"`
	AverageDLI     float64   `json:"average_dli"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summarize projects a run into a Summary. Runs without statistics have
// zero metrics.
func (r *Run) Summarize() Summary {
	s := Summary{
		RunID:          r.ID,
		Status:         r.Status,
		FixtureCount:   r.FixtureCount,
		RoomArea:       r.RoomWidth * r.RoomLength,
		BaseResolution: r.BaseResolution,
		CreatedAt:      r.CreatedAt,
	}
	if st := r.Statistics; st != nil {
		s.PointCount = st.PointCount
		s.MinPPFD = st.Min
		s.MaxPPFD = st.Max
		s.AveragePPFD = st.Average
		s.Uniformity = st.Uniformity
		s.Coverage = st.Coverage
		s.AverageDLI = st.AverageDLI
	}
	return s
}

// Filter narrows a run search. Nil bounds are open.
type Filter struct {
	Status        Status   `json:"status,omitempty"`
	MinUniformity *float64 `json:"min_uniformity,omitempty"`
	MaxUniformity *float64 `json:"max_uniformity,omitempty"`
	MinAvgPPFD    *float64 `json:"min_avg_ppfd,omitempty"`
	MaxAvgPPFD    *float64 `json:"max_avg_ppfd,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	Offset        int      `json:"offset,omitempty"`
}

// Repository persists runs.
type Repository interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	// Get returns ErrCodeRunNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit, offset int) ([]*Run, int64, error)
}

// Index stores run summaries for range search.
type Index interface {
	IndexSummary(ctx context.Context, s Summary) error
	Search(ctx context.Context, f Filter) ([]Summary, int64, error)
}
