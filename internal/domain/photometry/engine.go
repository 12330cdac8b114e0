package photometry

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// Defaults for Options.
const (
	DefaultMaxSubdivisionLevel = 4
	DefaultUniformityThreshold = 0.1
	DefaultContourStep         = 100.0
	DefaultCoverageThreshold   = 200.0
	DefaultMaxResolution       = 500
	DefaultMaxPoints           = 2_000_000
)

// Options tunes a calculation. Zero MaxResolution and MaxPoints fall back to
// their defaults; every other field is taken as given.
type Options struct {
	AdaptiveSubdivision bool    `json:"adaptive_subdivision" yaml:"adaptive_subdivision" mapstructure:"adaptive_subdivision"`
	MaxSubdivisionLevel int     `json:"max_subdivision_level" yaml:"max_subdivision_level" mapstructure:"max_subdivision_level"`
	UniformityThreshold float64 `json:"uniformity_threshold" yaml:"uniformity_threshold" mapstructure:"uniformity_threshold"`
	ContourStep         float64 `json:"contour_step" yaml:"contour_step" mapstructure:"contour_step"`
	CoverageThreshold   float64 `json:"coverage_threshold" yaml:"coverage_threshold" mapstructure:"coverage_threshold"`

	// PlaneHeight is the evaluation plane above the floor, in [0, room height).
	PlaneHeight float64 `json:"plane_height" yaml:"plane_height" mapstructure:"plane_height"`

	// Parallelism bounds worker goroutines; 0 uses GOMAXPROCS.
	Parallelism int `json:"parallelism" yaml:"parallelism" mapstructure:"parallelism"`

	// MaxResolution is the largest accepted base resolution.
	MaxResolution int `json:"max_resolution" yaml:"max_resolution" mapstructure:"max_resolution"`

	// MaxPoints caps base plus refined points in one grid.
	MaxPoints int `json:"max_points" yaml:"max_points" mapstructure:"max_points"`
}

// DefaultOptions returns the options used when Calculate gets nil.
func DefaultOptions() Options {
	return Options{
		AdaptiveSubdivision: true,
		MaxSubdivisionLevel: DefaultMaxSubdivisionLevel,
		UniformityThreshold: DefaultUniformityThreshold,
		ContourStep:         DefaultContourStep,
		CoverageThreshold:   DefaultCoverageThreshold,
		MaxResolution:       DefaultMaxResolution,
		MaxPoints:           DefaultMaxPoints,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxPoints == 0 {
		o.MaxPoints = DefaultMaxPoints
	}
	if o.MaxResolution == 0 {
		o.MaxResolution = DefaultMaxResolution
	}
	return o
}

// Validate checks the options against a room.
func (o Options) Validate(room Room) error {
	if o.MaxSubdivisionLevel < 0 || o.MaxSubdivisionLevel > MaxSubdivisionCeiling {
		return invalidParameter("max subdivision level must be in [0,%d], got %d", MaxSubdivisionCeiling, o.MaxSubdivisionLevel)
	}
	if !(o.UniformityThreshold >= 0) || math.IsInf(o.UniformityThreshold, 0) {
		return invalidParameter("uniformity threshold must be finite and >= 0, got %v", o.UniformityThreshold)
	}
	if !(o.ContourStep > 0) || math.IsInf(o.ContourStep, 0) {
		return invalidParameter("contour step must be positive, got %v", o.ContourStep)
	}
	if !finite(o.CoverageThreshold) || o.CoverageThreshold < 0 {
		return invalidParameter("coverage threshold must be finite and >= 0, got %v", o.CoverageThreshold)
	}
	if !finite(o.PlaneHeight) || o.PlaneHeight < 0 || o.PlaneHeight >= room.Height {
		return invalidParameter("plane height must be in [0,%v), got %v", room.Height, o.PlaneHeight)
	}
	if o.Parallelism < 0 {
		return invalidParameter("parallelism must be >= 0, got %d", o.Parallelism)
	}
	if o.MaxResolution <= 0 {
		return invalidParameter("max resolution must be positive, got %d", o.MaxResolution)
	}
	if o.MaxPoints <= 0 {
		return invalidParameter("max points must be positive, got %d", o.MaxPoints)
	}
	return nil
}

// PhotometricGrid is the result of a calculation. The first
// (BaseResolution+1)^2 Points are the base lattice in row-major order;
// refinement points follow.
type PhotometricGrid struct {
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
func (g *PhotometricGrid) BasePoints() []GridPoint {
	n := (g.BaseResolution + 1) * (g.BaseResolution + 1)
	if n > len(g.Points) {
		n = len(g.Points)
	}
	return g.Points[:n]
}

// Calculate evaluates fixtures over a baseResolution lattice covering the
// room, refines steep cells when enabled, and derives DLI, contours and
// statistics. A nil opts uses DefaultOptions. All inputs are validated
// before any work; a cancelled ctx yields an ErrCodeCalculationCancelled
// error and no partial result. Grids that would exceed MaxPoints fail with
// ErrCodeInvalidParameter.
func Calculate(ctx context.Context, fixtures []Fixture, room Room, baseResolution int, photoperiodHours float64, opts *Options) (*PhotometricGrid, error) {
	o := DefaultOptions()
	if opts != nil {
		o = opts.withDefaults()
	}
	if err := room.Validate(); err != nil {
		return nil, err
	}
	if baseResolution <= 0 || baseResolution > o.MaxResolution {
		return nil, invalidParameter("resolution must be in [1,%d], got %d", o.MaxResolution, baseResolution)
	}
	if err := ValidatePhotoperiod(photoperiodHours); err != nil {
		return nil, err
	}
	if err := o.Validate(room); err != nil {
		return nil, err
	}

	lat := Lattice{Resolution: baseResolution, Width: room.Width, Length: room.Length}
	if lat.Size() > o.MaxPoints {
		return nil, invalidParameter("base grid has %d points, above the %d point budget", lat.Size(), o.MaxPoints)
	}
	points, err := BuildGrid(room, baseResolution)
	if err != nil {
		return nil, err
	}

	eval := NewEvaluator(fixtures, o.PlaneHeight)
	warnings := append([]string(nil), eval.Warnings()...)
	if eval.EmitterCount() == 0 {
		warnings = append(warnings, "no fixture contributes light; all values are zero")
	}

	if err := eval.evaluateAll(ctx, points, o.Parallelism); err != nil {
		return nil, asCancellation(err)
	}

	depth, flagged := 0, 0
	budget := o.MaxPoints - lat.Size()
	if o.AdaptiveSubdivision && o.MaxSubdivisionLevel > 0 && budget == 0 {
		warnings = append(warnings, "base grid fills the point budget; refinement skipped")
	}
	if o.AdaptiveSubdivision && o.MaxSubdivisionLevel > 0 && budget > 0 {
		res, err := Refine(ctx, eval, lat, points, RefineOptions{
			MaxLevel:    o.MaxSubdivisionLevel,
			Threshold:   o.UniformityThreshold,
			Parallelism: o.Parallelism,
			MaxPoints:   budget,
		})
		if err != nil {
			return nil, asCancellation(err)
		}
		points = append(points, res.Points...)
		depth, flagged = res.Depth, res.FlaggedCells
	}

	if err := ApplyDLI(points, photoperiodHours); err != nil {
		return nil, err
	}

	grid := &PhotometricGrid{
		Points:              points,
		Width:               room.Width,
		Length:              room.Length,
		BaseResolution:      baseResolution,
		EffectiveResolution: baseResolution << depth,
		RefinementDepth:     depth,
		FlaggedCells:        flagged,
		Warnings:            warnings,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lines, err := ExtractContours(gctx, lat, points[:lat.Size()], o.ContourStep)
		grid.Contours = lines
		return err
	})
	g.Go(func() error {
		stats, err := ComputeStatistics(points, o.CoverageThreshold)
		grid.Statistics = stats
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, asCancellation(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, asCancellation(err)
	}
	return grid, nil
}
