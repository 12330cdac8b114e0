package photometry

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi

	// minChunk keeps goroutine overhead small relative to per-point work.
	minChunk = 64
)

// emitter is a fixture resolved for evaluation: dimming folded into flux,
// beam half-angle computed once.
type emitter struct {
	x, y, z  float64
	flux     float64
	halfBeam float64
	profile  []ProfileSample
}

// Evaluator sums fixture contributions at points on a horizontal plane.
// It is safe for concurrent use.
type Evaluator struct {
	emitters []emitter
	planeZ   float64
	warnings []string
}

// NewEvaluator resolves fixtures once. Disabled fixtures and fixtures with
// no positive output are dropped. Fixtures without any output source, with
// non-finite positions, mounted at or below the evaluation plane, or with an
// invalid profile are dropped with a warning.
func NewEvaluator(fixtures []Fixture, planeHeight float64) *Evaluator {
	e := &Evaluator{planeZ: planeHeight}
	for i, f := range fixtures {
		if !f.Enabled {
			continue
		}
		name := f.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if f.Output.Kind() == OutputUnknown {
			e.warnings = append(e.warnings, fmt.Sprintf("fixture %s has no photon output or wattage/efficacy; contributing zero", name))
			continue
		}
		if !finite(f.X, f.Y, f.Z) {
			e.warnings = append(e.warnings, fmt.Sprintf("fixture %s has a non-finite position; contributing zero", name))
			continue
		}
		if f.Z <= planeHeight {
			e.warnings = append(e.warnings, fmt.Sprintf("fixture %s is at or below the evaluation plane (z=%v); contributing zero", name, f.Z))
			continue
		}
		if len(f.Profile) > 0 {
			if err := ValidateProfile(f.Profile); err != nil {
				e.warnings = append(e.warnings, fmt.Sprintf("fixture %s: %v; contributing zero", name, err))
				continue
			}
		}
		flux := f.EffectivePPF()
		if flux <= 0 {
			continue
		}
		e.emitters = append(e.emitters, emitter{
			x:        f.X,
			y:        f.Y,
			z:        f.Z,
			flux:     flux,
			halfBeam: f.halfBeam(),
			profile:  f.Profile,
		})
	}
	return e
}

// Warnings lists fixtures that were skipped as malformed.
func (e *Evaluator) Warnings() []string { return e.warnings }

// EmitterCount is the number of fixtures that contribute light.
func (e *Evaluator) EmitterCount() int { return len(e.emitters) }

// Evaluate returns the flux density at (x, y) on the evaluation plane.
// The result is never negative.
func (e *Evaluator) Evaluate(x, y float64) float64 {
	var total float64
	for i := range e.emitters {
		total += e.emitters[i].contribution(x, y, e.planeZ)
	}
	return total
}

func (em *emitter) contribution(x, y, planeZ float64) float64 {
	dx, dy := x-em.x, y-em.y
	vertical := em.z - planeZ
	if vertical <= 0 {
		return 0
	}
	horizontal := math.Sqrt(dx*dx + dy*dy)
	distSq := horizontal*horizontal + vertical*vertical
	dist := math.Sqrt(distSq)

	angle := math.Atan2(horizontal, vertical) * radToDeg
	cosTerm := vertical / dist

	var weight float64
	if len(em.profile) > 0 {
		weight = profileWeight(em.profile, angle)
	} else {
		weight = beamWeight(angle, em.halfBeam)
	}

	c := em.flux * cosTerm * weight / distSq
	if c < 0 || math.IsNaN(c) {
		return 0
	}
	return c
}

// beamWeight approximates an angular distribution from a beam angle: cos(θ)
// inside the half beam, cos²(θ - half) past it, zero once θ is 90° past the
// edge.
func beamWeight(angle, halfBeam float64) float64 {
	var w float64
	if angle <= halfBeam {
		w = math.Cos(angle * degToRad)
	} else {
		over := angle - halfBeam
		if over >= 90 {
			return 0
		}
		c := math.Cos(over * degToRad)
		w = c * c
	}
	if w < 0 {
		return 0
	}
	return w
}

// evaluateAll fills PPFD for every point in place, in parallel chunks.
// The context is checked before each point.
func (e *Evaluator) evaluateAll(ctx context.Context, points []GridPoint, parallelism int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	chunk := len(points) / (parallelism * 4)
	if chunk < minChunk {
		chunk = minChunk
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for lo := 0; lo < len(points); lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > len(points) {
			hi = len(points)
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				points[i].PPFD = e.Evaluate(points[i].X, points[i].Y)
			}
			return nil
		})
	}
	return g.Wait()
}
