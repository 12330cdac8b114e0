package photometry

import (
	"context"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MaxSubdivisionCeiling bounds MaxLevel so the fine lattice fits in an int.
const MaxSubdivisionCeiling = 10

// RefineOptions controls adaptive subdivision.
type RefineOptions struct {
	// MaxLevel is the deepest subdivision level; 0 disables refinement.
	MaxLevel int
	// Threshold is the relative spread (max-min)/mean above which a cell
	// is subdivided.
	Threshold float64
	// Parallelism bounds concurrent cells; <= 0 uses GOMAXPROCS.
	Parallelism int
	// MaxPoints caps the points refinement may add, counted per cell
	// before shared edges are merged; <= 0 means no cap.
	MaxPoints int
}

// RefineResult holds the points added by refinement.
type RefineResult struct {
	// Points are new samples with PPFD set, in deterministic order.
	Points []GridPoint
	// Depth is the deepest level any point was added at.
	Depth int
	// FlaggedCells counts base cells that needed at least one subdivision.
	FlaggedCells int
}

// fineKey addresses a point on the lattice refined 2^MaxLevel times in each
// direction. Shared edge midpoints map to the same key.
type fineKey struct{ x, y int }

type refinedPoint struct {
	key   fineKey
	ppfd  float64
	level int
}

// cellRefiner subdivides one base cell. It is not shared between goroutines;
// added and limit are shared by every cell of one Refine call.
type cellRefiner struct {
	eval     *Evaluator
	ctx      context.Context
	maxLevel int
	thresh   float64
	unitX    float64
	unitY    float64
	added    *atomic.Int64
	limit    int64
	seen     map[fineKey]struct{}
	out      []refinedPoint
}

// Refine subdivides every base cell whose corner spread exceeds the
// threshold. Each subdivision adds the four edge midpoints and the centre,
// then recurses into the four quadrants until MaxLevel. base must be the
// evaluated lattice described by lat.
func Refine(ctx context.Context, eval *Evaluator, lat Lattice, base []GridPoint, opts RefineOptions) (*RefineResult, error) {
	if opts.MaxLevel < 0 || opts.MaxLevel > MaxSubdivisionCeiling {
		return nil, invalidParameter("max subdivision level must be in [0,%d], got %d", MaxSubdivisionCeiling, opts.MaxLevel)
	}
	if !(opts.Threshold >= 0) || math.IsInf(opts.Threshold, 0) {
		return nil, invalidParameter("uniformity threshold must be finite and >= 0, got %v", opts.Threshold)
	}
	if len(base) != lat.Size() {
		return nil, invalidParameter("base grid has %d points, lattice expects %d", len(base), lat.Size())
	}
	res := &RefineResult{}
	if opts.MaxLevel == 0 || lat.Cells() == 0 {
		return res, ctx.Err()
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	scale := 1 << opts.MaxLevel
	perCell := make([][]refinedPoint, lat.Cells())
	var added atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for row := 0; row < lat.Resolution; row++ {
		for col := 0; col < lat.Resolution; col++ {
			row, col := row, col
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				c := lat.cellCorners(col, row)
				cr := &cellRefiner{
					eval:     eval,
					ctx:      gctx,
					maxLevel: opts.MaxLevel,
					thresh:   opts.Threshold,
					unitX:    lat.StepX() / float64(scale),
					unitY:    lat.StepY() / float64(scale),
					added:    &added,
					limit:    int64(opts.MaxPoints),
					seen:     make(map[fineKey]struct{}),
				}
				corners := [4]float64{base[c[0]].PPFD, base[c[1]].PPFD, base[c[2]].PPFD, base[c[3]].PPFD}
				if err := cr.subdivide(col*scale, row*scale, scale, corners, 0); err != nil {
					return err
				}
				perCell[row*lat.Resolution+col] = cr.out
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	global := make(map[fineKey]struct{})
	unitX := lat.StepX() / float64(scale)
	unitY := lat.StepY() / float64(scale)
	for _, cell := range perCell {
		if len(cell) > 0 {
			res.FlaggedCells++
		}
		for _, p := range cell {
			if _, dup := global[p.key]; dup {
				continue
			}
			global[p.key] = struct{}{}
			res.Points = append(res.Points, GridPoint{
				X:     float64(p.key.x) * unitX,
				Y:     float64(p.key.y) * unitY,
				PPFD:  p.ppfd,
				Level: p.level,
			})
			if p.level > res.Depth {
				res.Depth = p.level
			}
		}
	}
	return res, nil
}

// subdivide handles the cell with lower-left fine corner (fx, fy) and side
// size. v holds corner PPFD as lower-left, lower-right, upper-right,
// upper-left. It stops with the context error once the context ends and
// with InvalidParameter once the point cap is exceeded.
func (r *cellRefiner) subdivide(fx, fy, size int, v [4]float64, level int) error {
	if level >= r.maxLevel || !needsRefinement(v, r.thresh) {
		return nil
	}
	select {
	case <-r.ctx.Done():
		return r.ctx.Err()
	default:
	}
	h := size / 2
	keys := [5]fineKey{
		{fx + h, fy},        // bottom
		{fx + size, fy + h}, // right
		{fx + h, fy + size}, // top
		{fx, fy + h},        // left
		{fx + h, fy + h},    // centre
	}
	var vals [5]float64
	fresh := 0
	for i, k := range keys {
		vals[i] = r.eval.Evaluate(float64(k.x)*r.unitX, float64(k.y)*r.unitY)
		if _, ok := r.seen[k]; ok {
			continue
		}
		r.seen[k] = struct{}{}
		r.out = append(r.out, refinedPoint{key: k, ppfd: vals[i], level: level + 1})
		fresh++
	}
	if r.limit > 0 && r.added.Add(int64(fresh)) > r.limit {
		return invalidParameter("refinement exceeds the %d point budget; lower the max subdivision level or raise the uniformity threshold", r.limit)
	}

	b, rt, t, l, m := vals[0], vals[1], vals[2], vals[3], vals[4]
	ll, lr, ur, ul := v[0], v[1], v[2], v[3]
	quads := [4]struct {
		x, y    int
		corners [4]float64
	}{
		{fx, fy, [4]float64{ll, b, m, l}},
		{fx + h, fy, [4]float64{b, lr, rt, m}},
		{fx + h, fy + h, [4]float64{m, rt, ur, t}},
		{fx, fy + h, [4]float64{l, m, t, ul}},
	}
	for _, q := range quads {
		if err := r.subdivide(q.x, q.y, h, q.corners, level+1); err != nil {
			return err
		}
	}
	return nil
}

// needsRefinement reports whether the corner spread relative to the mean
// exceeds threshold. Cells with a non-positive mean are treated as uniform.
func needsRefinement(v [4]float64, threshold float64) bool {
	lo, hi, sum := v[0], v[0], 0.0
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
		sum += x
	}
	mean := sum / 4
	if !(mean > 0) {
		return false
	}
	return (hi-lo)/mean > threshold
}

// MaxRefinementPoints is the upper bound on points refinement can add to a
// lattice with the given cell count: 5 per subdivision, 4^k subdivisions at
// level k.
func MaxRefinementPoints(cells, maxLevel int) int {
	if cells <= 0 || maxLevel <= 0 {
		return 0
	}
	return cells * 5 * ((1 << (2 * maxLevel)) - 1) / 3
}
