package client

import (
	"time"

	"github.com/turtacn/LumiGrid/pkg/types/common"
)

// Room is the rectangular room in metres. The origin is a floor corner.
type Room struct {
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Height float64 `json:"height"`
}

// ProfileSample is one point of a measured angular intensity profile.
type ProfileSample struct {
	Angle    float64 `json:"angle"`
	Relative float64 `json:"relative"`
}

// Fixture places one light source. Output comes from PPF, from
// Wattage x Efficacy, or from the catalog model named by ModelID.
type Fixture struct {
	ID      string   `json:"id"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Z       float64  `json:"z"`
	Enabled *bool    `json:"enabled,omitempty"`
	Dimming *float64 `json:"dimming,omitempty"`

	PPF      *float64 `json:"ppf,omitempty"`
	Wattage  float64  `json:"wattage,omitempty"`
	Efficacy float64  `json:"efficacy,omitempty"`
	ModelID  string   `json:"modelId,omitempty"`

	BeamAngle float64         `json:"beamAngle,omitempty"`
	Profile   []ProfileSample `json:"profile,omitempty"`
}

// Options tunes one calculation. Nil fields keep the server defaults.
type Options struct {
	AdaptiveSubdivision *bool    `json:"adaptiveSubdivision,omitempty"`
	MaxSubdivisionLevel *int     `json:"maxSubdivisionLevel,omitempty"`
	UniformityThreshold *float64 `json:"uniformityThreshold,omitempty"`
	ContourStep         *float64 `json:"contourStep,omitempty"`
	CoverageThreshold   *float64 `json:"coverageThreshold,omitempty"`
	PlaneHeight         *float64 `json:"planeHeight,omitempty"`
}

// CalculationRequest is the body of a calculation or job submission.
type CalculationRequest struct {
	Fixtures         []Fixture `json:"fixtures"`
	Room             Room      `json:"room"`
	Resolution       int       `json:"resolution,omitempty"`
	PhotoperiodHours *float64  `json:"photoperiodHours,omitempty"`
	Options          *Options  `json:"options,omitempty"`
}

// GridPoint is one sample of the horizontal plane.
type GridPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	PPFD  float64 `json:"ppfd"`
	DLI   float64 `json:"dli"`
	Level int     `json:"level"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// ContourLine is the iso-PPFD line at Level.
type ContourLine struct {
	Level    float64   `json:"level"`
	Color    string    `json:"color"`
	Points   []Point   `json:"points"`
	Segments []Segment `json:"segments"`
}

// Statistics summarises PPFD and DLI across the grid.
type Statistics struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Average    float64 `json:"average"`
	Uniformity float64 `json:"uniformity"`
	Coverage   float64 `json:"coverage"`
	MinDLI     float64 `json:"min_dli"`
	MaxDLI     float64 `json:"max_dli"`
	AverageDLI float64 `json:"average_dli"`
	PointCount int     `json:"point_count"`
}

// Grid is a calculated photometric grid. The first
// (BaseResolution+1)^2 points are the base lattice in row-major order.
type Grid struct {
	Points              []GridPoint   `json:"points"`
	Width               float64       `json:"width"`
	Length              float64       `json:"length"`
	BaseResolution      int           `json:"base_resolution"`
	EffectiveResolution int           `json:"effective_resolution"`
	RefinementDepth     int           `json:"refinement_depth"`
	FlaggedCells        int           `json:"flagged_cells"`
	Contours            []ContourLine `json:"contours"`
	Statistics          Statistics    `json:"statistics"`
	Warnings            []string      `json:"warnings,omitempty"`
}

// BasePoints returns the regular lattice portion of Points.
func (g *Grid) BasePoints() []GridPoint {
	n := (g.BaseResolution + 1) * (g.BaseResolution + 1)
	if n > len(g.Points) {
		n = len(g.Points)
	}
	return g.Points[:n]
}

// CalculationResult is the response of a synchronous calculation.
type CalculationResult struct {
	RunID       string `json:"run_id"`
	RequestHash string `json:"request_hash"`
	ReportKey   string `json:"report_key,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Cached      bool   `json:"cached"`
	Grid        *Grid  `json:"grid"`
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the run will not change again.
func (s RunStatus) Terminal() bool { return s == RunCompleted || s == RunFailed }

// Job acknowledges a queued calculation.
type Job struct {
	RunID       string    `json:"run_id"`
	Status      RunStatus `json:"status"`
	RequestHash string    `json:"request_hash"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Run is a recorded calculation.
type Run struct {
	ID                  string      `json:"id"`
	Status              RunStatus   `json:"status"`
	RequestHash         string      `json:"request_hash"`
	FixtureCount        int         `json:"fixture_count"`
	RoomWidth           float64     `json:"room_width"`
	RoomLength          float64     `json:"room_length"`
	RoomHeight          float64     `json:"room_height"`
	BaseResolution      int         `json:"base_resolution"`
	EffectiveResolution int         `json:"effective_resolution"`
	PhotoperiodHours    float64     `json:"photoperiod_hours"`
	Statistics          *Statistics `json:"statistics,omitempty"`
	ReportKey           string      `json:"report_key,omitempty"`
	Error               string      `json:"error,omitempty"`
	DurationMillis      int64       `json:"duration_ms"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty"`
}

// RunList is one page of run history.
type RunList struct {
	Runs   []*Run `json:"runs"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// RunSummary is the indexed projection of a run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	Status         RunStatus `json:"status"`
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

// SearchFilter narrows a run search. Nil bounds are open.
type SearchFilter struct {
	Status        RunStatus
	MinUniformity *float64
	MaxUniformity *float64
	MinAvgPPFD    *float64
	MaxAvgPPFD    *float64
	Limit         int
	Offset        int
}

// SearchResult is a page of matching run summaries.
type SearchResult struct {
	Summaries []RunSummary `json:"summaries"`
	Total     int64        `json:"total"`
}

// FixtureModel is a catalog entry.
type FixtureModel struct {
	ID           string    `json:"id"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
	PPF          float64   `json:"ppf,omitempty"`
	Wattage      float64   `json:"wattage,omitempty"`
	Efficacy     float64   `json:"efficacy,omitempty"`
	BeamAngle    float64   `json:"beam_angle,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FixtureModelInput is one row of a catalog import.
type FixtureModelInput struct {
	Manufacturer string  `json:"manufacturer"`
	Model        string  `json:"model"`
	PPF          float64 `json:"ppf,omitempty"`
	Wattage      float64 `json:"wattage,omitempty"`
	Efficacy     float64 `json:"efficacy,omitempty"`
	BeamAngle    float64 `json:"beamAngle,omitempty"`
}

// FixtureModelList is one page of the catalog.
type FixtureModelList struct {
	Models []*FixtureModel `json:"models"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ImportResult reports how many models were written.
type ImportResult struct {
	Imported int64 `json:"imported"`
}

// HealthReport is the readiness probe body.
type HealthReport struct {
	Status     common.HealthStatus      `json:"status"`
	Components []common.ComponentHealth `json:"components,omitempty"`
}

// Healthy reports whether no component is down.
func (r *HealthReport) Healthy() bool { return r.Status != common.HealthDown }
