package photometry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var growRoom = Room{Width: 20, Length: 20, Height: 10}

func noAdaptive() *Options {
	o := DefaultOptions()
	o.AdaptiveSubdivision = false
	return &o
}

func brightest(points []GridPoint) GridPoint {
	best := points[0]
	for _, p := range points[1:] {
		if p.PPFD > best.PPFD {
			best = p
		}
	}
	return best
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	assert.True(t, o.AdaptiveSubdivision)
	assert.Equal(t, 4, o.MaxSubdivisionLevel)
	assert.Equal(t, 0.1, o.UniformityThreshold)
	assert.Equal(t, 100.0, o.ContourStep)
	assert.Equal(t, 200.0, o.CoverageThreshold)
	assert.Zero(t, o.PlaneHeight)
	assert.Zero(t, o.Parallelism)
	assert.NoError(t, o.Validate(growRoom))
}

func TestCalculate_SingleFixture(t *testing.T) {
	t.Parallel()

	grid, err := Calculate(context.Background(), []Fixture{centreFixture(1800)}, growRoom, 10, 12, nil)
	require.NoError(t, err)

	assert.Greater(t, len(grid.Points), 121)
	assert.LessOrEqual(t, len(grid.Points), 121+MaxRefinementPoints(100, 4))
	assert.Greater(t, grid.Statistics.Max, grid.Statistics.Min)
	assert.Equal(t, 36.7, grid.Statistics.Max)
	assert.Equal(t, len(grid.Points), grid.Statistics.PointCount)
	assert.Equal(t, 10, grid.BaseResolution)
	assert.LessOrEqual(t, grid.RefinementDepth, 4)
	assert.Positive(t, grid.RefinementDepth)
	assert.Equal(t, 10<<grid.RefinementDepth, grid.EffectiveResolution)
	assert.Len(t, grid.BasePoints(), 121)

	top := brightest(grid.Points)
	assert.Equal(t, 10.0, top.X)
	assert.Equal(t, 10.0, top.Y)
	assert.InDelta(t, top.PPFD*12*3600/1e6, top.DLI, 1e-12)
	assert.InDelta(t, 1.587, top.DLI, 1e-3)

	for _, p := range grid.Points {
		assert.GreaterOrEqual(t, p.PPFD, 0.0)
		assert.LessOrEqual(t, p.Level, 4)
	}
}

func TestCalculate_DimmedToZero(t *testing.T) {
	t.Parallel()

	f := centreFixture(1800)
	f.Dimming = 0
	grid, err := Calculate(context.Background(), []Fixture{f}, growRoom, 10, 12, nil)
	require.NoError(t, err)

	for _, p := range grid.Points {
		assert.Zero(t, p.PPFD)
		assert.Zero(t, p.DLI)
	}
	assert.Len(t, grid.Points, 121)
	assert.Zero(t, grid.Statistics.Uniformity)
	assert.Zero(t, grid.Statistics.Coverage)
	assert.Empty(t, grid.Contours)
	assert.Zero(t, grid.RefinementDepth)
	assert.NotEmpty(t, grid.Warnings)
}

func TestCalculate_NoFixtures(t *testing.T) {
	t.Parallel()

	disabled := centreFixture(1800)
	disabled.Enabled = false

	for _, fixtures := range [][]Fixture{nil, {disabled}} {
		grid, err := Calculate(context.Background(), fixtures, growRoom, 8, 12, nil)
		require.NoError(t, err)
		for _, p := range grid.Points {
			assert.Equal(t, 0.0, p.PPFD)
		}
		assert.Zero(t, grid.Statistics.Uniformity)
		assert.Zero(t, grid.Statistics.Coverage)
	}
}

func TestCalculate_SplitFixturesImproveUniformity(t *testing.T) {
	t.Parallel()

	single := []Fixture{centreFixture(3600)}
	left, right := centreFixture(1800), centreFixture(1800)
	left.X, right.X = 7.5, 12.5
	pair := []Fixture{left, right}

	for _, opts := range []*Options{nil, noAdaptive()} {
		one, err := Calculate(context.Background(), single, growRoom, 10, 12, opts)
		require.NoError(t, err)
		two, err := Calculate(context.Background(), pair, growRoom, 10, 12, opts)
		require.NoError(t, err)

		assert.Greater(t, two.Statistics.Min, one.Statistics.Min)
		assert.Greater(t, two.Statistics.Uniformity, one.Statistics.Uniformity)
	}
}

func TestCalculate_RefinementThreshold(t *testing.T) {
	t.Parallel()

	fixtures := []Fixture{centreFixture(1800)}

	fine := DefaultOptions()
	fine.UniformityThreshold = 0.001
	grid, err := Calculate(context.Background(), fixtures, growRoom, 10, 12, &fine)
	require.NoError(t, err)
	assert.Greater(t, len(grid.Points), 121)

	grid, err = Calculate(context.Background(), fixtures, growRoom, 10, 12, noAdaptive())
	require.NoError(t, err)
	assert.Len(t, grid.Points, 121)
	assert.Equal(t, 10, grid.EffectiveResolution)
	assert.Zero(t, grid.RefinementDepth)

	zeroDepth := DefaultOptions()
	zeroDepth.MaxSubdivisionLevel = 0
	grid, err = Calculate(context.Background(), fixtures, growRoom, 10, 12, &zeroDepth)
	require.NoError(t, err)
	assert.Len(t, grid.Points, 121)
}

func TestCalculate_Symmetry(t *testing.T) {
	t.Parallel()

	grid, err := Calculate(context.Background(), []Fixture{centreFixture(1800)}, growRoom, 10, 12, noAdaptive())
	require.NoError(t, err)

	lat := Lattice{Resolution: 10, Width: 20, Length: 20}
	for row := 0; row <= 10; row++ {
		for col := 0; col <= 10; col++ {
			v := grid.Points[lat.Index(col, row)].PPFD
			assert.InDelta(t, v, grid.Points[lat.Index(10-col, row)].PPFD, 1e-9)
			assert.InDelta(t, v, grid.Points[lat.Index(col, 10-row)].PPFD, 1e-9)
			assert.InDelta(t, v, grid.Points[lat.Index(row, col)].PPFD, 1e-9)
		}
	}
	assert.Equal(t, grid.Points[lat.Index(5, 5)], brightest(grid.Points))
}

func TestCalculate_Contours(t *testing.T) {
	t.Parallel()

	grid, err := Calculate(context.Background(), []Fixture{centreFixture(50000)}, growRoom, 20, 12, nil)
	require.NoError(t, err)
	require.NotEmpty(t, grid.Contours)

	for _, c := range grid.Contours {
		assert.NotEmpty(t, c.Segments)
		assert.NotEmpty(t, c.Color)
		assert.InDelta(t, 0, math.Mod(c.Level, 100), 1e-9)
	}
}

func TestCalculate_Warnings(t *testing.T) {
	t.Parallel()

	ghost := Fixture{ID: "ghost", X: 5, Y: 5, Z: 3, Enabled: true, Dimming: 100}
	grid, err := Calculate(context.Background(), []Fixture{centreFixture(1800), ghost}, growRoom, 4, 12, nil)
	require.NoError(t, err)
	require.Len(t, grid.Warnings, 1)
	assert.Contains(t, grid.Warnings[0], "ghost")
}

func TestCalculate_Validation(t *testing.T) {
	t.Parallel()

	fixtures := []Fixture{centreFixture(1800)}
	withOpts := func(mut func(*Options)) *Options {
		o := DefaultOptions()
		mut(&o)
		return &o
	}

	tests := []struct {
		name       string
		room       Room
		resolution int
		hours      float64
		opts       *Options
	}{
		{"zero resolution", growRoom, 0, 12, nil},
		{"negative resolution", growRoom, -3, 12, nil},
		{"resolution over ceiling", growRoom, 501, 12, nil},
		{"custom ceiling", growRoom, 6, 12, withOpts(func(o *Options) { o.MaxResolution = 5 })},
		{"negative photoperiod", growRoom, 10, -1, nil},
		{"photoperiod past a day", growRoom, 10, 25, nil},
		{"flat room", Room{Width: 20, Length: 20}, 10, 12, nil},
		{"subdivision too deep", growRoom, 10, 12, withOpts(func(o *Options) { o.MaxSubdivisionLevel = 11 })},
		{"negative subdivision", growRoom, 10, 12, withOpts(func(o *Options) { o.MaxSubdivisionLevel = -1 })},
		{"negative threshold", growRoom, 10, 12, withOpts(func(o *Options) { o.UniformityThreshold = -0.1 })},
		{"negative contour step", growRoom, 10, 12, withOpts(func(o *Options) { o.ContourStep = -5 })},
		{"zero contour step", growRoom, 10, 12, withOpts(func(o *Options) { o.ContourStep = 0 })},
		{"negative max points", growRoom, 10, 12, withOpts(func(o *Options) { o.MaxPoints = -1 })},
		{"base grid over point budget", growRoom, 10, 12, withOpts(func(o *Options) { o.MaxPoints = 100 })},
		{"refinement over point budget", growRoom, 10, 12, withOpts(func(o *Options) {
			o.MaxSubdivisionLevel = MaxSubdivisionCeiling
			o.UniformityThreshold = 0
			o.MaxPoints = 1000
		})},
		{"plane at ceiling", growRoom, 10, 12, withOpts(func(o *Options) { o.PlaneHeight = 10 })},
		{"negative parallelism", growRoom, 10, 12, withOpts(func(o *Options) { o.Parallelism = -2 })},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grid, err := Calculate(context.Background(), fixtures, tt.room, tt.resolution, tt.hours, tt.opts)
			require.Error(t, err)
			assert.Nil(t, grid)
			assert.True(t, IsInvalidParameter(err), "got %v", err)
		})
	}
}

func TestCalculate_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid, err := Calculate(ctx, []Fixture{centreFixture(1800)}, growRoom, 10, 12, nil)
	require.Error(t, err)
	assert.Nil(t, grid)
	assert.True(t, IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculate_CancelledDuringDeepRefinement(t *testing.T) {
	t.Parallel()

	offset := Fixture{ID: "off", X: 3, Y: 4, Z: 7, Enabled: true, Output: ExplicitOutput(1800), BeamAngle: 120, Dimming: 100}
	opts := DefaultOptions()
	opts.MaxSubdivisionLevel = MaxSubdivisionCeiling
	opts.UniformityThreshold = 0
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	grid, err := Calculate(ctx, []Fixture{offset}, growRoom, 1, 12, &opts)
	require.Error(t, err)
	assert.Nil(t, grid)
	assert.True(t, IsCancelled(err), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCalculate_PointBudgetFilledByBase(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.MaxPoints = 121

	grid, err := Calculate(context.Background(), []Fixture{centreFixture(1800)}, growRoom, 10, 12, &opts)
	require.NoError(t, err)
	assert.Len(t, grid.Points, 121)
	assert.Zero(t, grid.RefinementDepth)
	assert.Contains(t, grid.Warnings, "base grid fills the point budget; refinement skipped")
}

func TestCalculate_ExplicitZeroOptions(t *testing.T) {
	t.Parallel()

	fixtures := []Fixture{centreFixture(1800)}

	grid, err := Calculate(context.Background(), fixtures, growRoom, 10, 12, noAdaptive())
	require.NoError(t, err)
	assert.Zero(t, grid.Statistics.Coverage)

	opts := noAdaptive()
	opts.CoverageThreshold = 0
	grid, err = Calculate(context.Background(), fixtures, growRoom, 10, 12, opts)
	require.NoError(t, err)
	assert.Equal(t, 100.0, grid.Statistics.Coverage)

	opts = noAdaptive()
	opts.MaxResolution = 0
	opts.MaxPoints = 0
	_, err = Calculate(context.Background(), fixtures, growRoom, DefaultMaxResolution, 12, opts)
	require.NoError(t, err)
}

func TestCalculate_Deterministic(t *testing.T) {
	t.Parallel()

	fixtures := []Fixture{
		centreFixture(1800),
		{ID: "corner", X: 2, Y: 3, Z: 6, Enabled: true, Output: DerivedOutput(320, 2.8), BeamAngle: 90, Dimming: 80},
	}
	serial := DefaultOptions()
	serial.Parallelism = 1

	a, err := Calculate(context.Background(), fixtures, growRoom, 12, 18, &serial)
	require.NoError(t, err)
	b, err := Calculate(context.Background(), fixtures, growRoom, 12, 18, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
