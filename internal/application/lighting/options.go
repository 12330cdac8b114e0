package lighting

import (
	"github.com/turtacn/LumiGrid/internal/config"
	"github.com/turtacn/LumiGrid/internal/domain/photometry"
)

// EngineOptions maps the engine config section onto engine options. Zero
// numeric settings keep the engine defaults.
func EngineOptions(cfg config.EngineConfig) photometry.Options {
	o := photometry.DefaultOptions()
	o.AdaptiveSubdivision = cfg.AdaptiveSubdivision
	if cfg.MaxSubdivisionLevel > 0 {
		o.MaxSubdivisionLevel = cfg.MaxSubdivisionLevel
	}
	if cfg.UniformityThreshold > 0 {
		o.UniformityThreshold = cfg.UniformityThreshold
	}
	if cfg.ContourStep > 0 {
		o.ContourStep = cfg.ContourStep
	}
	if cfg.CoverageThreshold > 0 {
		o.CoverageThreshold = cfg.CoverageThreshold
	}
	if cfg.MaxResolution > 0 {
		o.MaxResolution = cfg.MaxResolution
	}
	if cfg.MaxPoints > 0 {
		o.MaxPoints = cfg.MaxPoints
	}
	o.Parallelism = cfg.Parallelism
	return o
}

func (in *OptionsInput) apply(o photometry.Options) photometry.Options {
	if in == nil {
		return o
	}
	if in.AdaptiveSubdivision != nil {
		o.AdaptiveSubdivision = *in.AdaptiveSubdivision
	}
	if in.MaxSubdivisionLevel != nil {
		o.MaxSubdivisionLevel = *in.MaxSubdivisionLevel
	}
	if in.UniformityThreshold != nil {
		o.UniformityThreshold = *in.UniformityThreshold
	}
	if in.ContourStep != nil {
		o.ContourStep = *in.ContourStep
	}
	if in.CoverageThreshold != nil {
		o.CoverageThreshold = *in.CoverageThreshold
	}
	if in.PlaneHeight != nil {
		o.PlaneHeight = *in.PlaneHeight
	}
	return o
}
