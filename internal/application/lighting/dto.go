package lighting

import (
	"time"

	"github.com/turtacn/LumiGrid/internal/domain/calculation"
	"github.com/turtacn/LumiGrid/internal/domain/catalog"
	"github.com/turtacn/LumiGrid/internal/domain/photometry"
)

// RoomInput is the room footprint and ceiling height in metres.
type RoomInput struct {
	Width  float64 `json:"width" yaml:"width"`
	Length float64 `json:"length" yaml:"length"`
	Height float64 `json:"height" yaml:"height"`
}

// FixtureInput describes one fixture. Output resolves in order: PPF when
// present, else Wattage*Efficacy when both are positive, else the catalog
// model named by ModelID. A fixture with none of these contributes nothing
// and is reported as a warning.
type FixtureInput struct {
	ID      string   `json:"id" yaml:"id"`
	X       float64  `json:"x" yaml:"x"`
	Y       float64  `json:"y" yaml:"y"`
	Z       float64  `json:"z" yaml:"z"`
	Enabled *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Dimming *float64 `json:"dimming,omitempty" yaml:"dimming,omitempty"`

	PPF      *float64 `json:"ppf,omitempty" yaml:"ppf,omitempty"`
	Wattage  float64  `json:"wattage,omitempty" yaml:"wattage,omitempty"`
	Efficacy float64  `json:"efficacy,omitempty" yaml:"efficacy,omitempty"`
	ModelID  string   `json:"modelId,omitempty" yaml:"modelId,omitempty"`

	// BeamAngle of 0 falls back to the model's beam angle, then the engine default.
	BeamAngle float64                    `json:"beamAngle,omitempty" yaml:"beamAngle,omitempty"`
	Profile   []photometry.ProfileSample `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// OptionsInput overrides the configured engine defaults field by field.
type OptionsInput struct {
	AdaptiveSubdivision *bool    `json:"adaptiveSubdivision,omitempty" yaml:"adaptiveSubdivision,omitempty"`
	MaxSubdivisionLevel *int     `json:"maxSubdivisionLevel,omitempty" yaml:"maxSubdivisionLevel,omitempty"`
	UniformityThreshold *float64 `json:"uniformityThreshold,omitempty" yaml:"uniformityThreshold,omitempty"`
	ContourStep         *float64 `json:"contourStep,omitempty" yaml:"contourStep,omitempty"`
	CoverageThreshold   *float64 `json:"coverageThreshold,omitempty" yaml:"coverageThreshold,omitempty"`
	PlaneHeight         *float64 `json:"planeHeight,omitempty" yaml:"planeHeight,omitempty"`
}

// CalculationRequest is the input of Calculate and Submit. A zero
// Resolution and a nil PhotoperiodHours use the configured defaults.
type CalculationRequest struct {
	Fixtures         []FixtureInput `json:"fixtures" yaml:"fixtures"`
	Room             RoomInput      `json:"room" yaml:"room"`
	Resolution       int            `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	PhotoperiodHours *float64       `json:"photoperiodHours,omitempty" yaml:"photoperiodHours,omitempty"`
	Options          *OptionsInput  `json:"options,omitempty" yaml:"options,omitempty"`
}

// CalculationResult is a finished calculation. Cached is set when the grid
// came from the result cache; RunID then names the run that produced it.
type CalculationResult struct {
	RunID       string                      `json:"run_id"`
	RequestHash string                      `json:"request_hash"`
	ReportKey   string                      `json:"report_key,omitempty"`
	DurationMS  int64                       `json:"duration_ms"`
	Cached      bool                        `json:"cached"`
	Grid        *photometry.PhotometricGrid `json:"grid"`
}

// Job is the receipt for an asynchronous calculation.
type Job struct {
	RunID       string             `json:"run_id"`
	Status      calculation.Status `json:"status"`
	RequestHash string             `json:"request_hash"`
	SubmittedAt time.Time          `json:"submitted_at"`
}

// RunList is one page of run history.
type RunList struct {
	Runs   []*calculation.Run `json:"runs"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// SearchResult is one page of indexed run summaries.
type SearchResult struct {
	Summaries []calculation.Summary `json:"summaries"`
	Total     int64                 `json:"total"`
}

// Report is the object stored for every completed run.
type Report struct {
	Run         calculation.Summary         `json:"run"`
	RequestHash string                      `json:"request_hash"`
	GeneratedAt time.Time                   `json:"generated_at"`
	Grid        *photometry.PhotometricGrid `json:"grid"`
}

// FixtureModelInput is one catalog entry to import.
type FixtureModelInput struct {
	Manufacturer string  `json:"manufacturer" yaml:"manufacturer"`
	Model        string  `json:"model" yaml:"model"`
	PPF          float64 `json:"ppf,omitempty" yaml:"ppf,omitempty"`
	Wattage      float64 `json:"wattage,omitempty" yaml:"wattage,omitempty"`
	Efficacy     float64 `json:"efficacy,omitempty" yaml:"efficacy,omitempty"`
	BeamAngle    float64 `json:"beamAngle,omitempty" yaml:"beamAngle,omitempty"`
}

// FixtureModelList is one page of the catalog.
type FixtureModelList struct {
	Models []*catalog.FixtureModel `json:"models"`
	Total  int64                   `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// ImportResult reports how many catalog rows a bulk import wrote.
type ImportResult struct {
	Imported int64 `json:"imported"`
}

func (r RoomInput) toDomain() photometry.Room {
	return photometry.Room{Width: r.Width, Length: r.Length, Height: r.Height}
}
