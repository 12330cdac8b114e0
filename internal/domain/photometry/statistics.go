package photometry

import (
	"math"

	"github.com/turtacn/LumiGrid/pkg/errors"
)

// Statistics summarizes a point set. PPFD values are rounded to one
// decimal, DLI to two, Uniformity to three and Coverage (percent) to one.
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

// ComputeStatistics reduces points into Statistics. Coverage is the share of
// points with PPFD >= coverageThreshold. Uniformity is min/max computed on
// unrounded values, 0 when max is 0.
func ComputeStatistics(points []GridPoint, coverageThreshold float64) (Statistics, error) {
	if len(points) == 0 {
		return Statistics{}, errors.New(errors.ErrCodeEmptyDataset, "no points to summarize")
	}

	minP, maxP := math.Inf(1), math.Inf(-1)
	minD, maxD := math.Inf(1), math.Inf(-1)
	var sumP, sumD float64
	covered := 0
	for _, p := range points {
		minP = math.Min(minP, p.PPFD)
		maxP = math.Max(maxP, p.PPFD)
		minD = math.Min(minD, p.DLI)
		maxD = math.Max(maxD, p.DLI)
		sumP += p.PPFD
		sumD += p.DLI
		if p.PPFD >= coverageThreshold {
			covered++
		}
	}

	n := float64(len(points))
	var uniformity float64
	if maxP > 0 {
		uniformity = minP / maxP
	}
	return Statistics{
		Min:        round(minP, 1),
		Max:        round(maxP, 1),
		Average:    round(sumP/n, 1),
		Uniformity: round(uniformity, 3),
		Coverage:   round(float64(covered)/n*100, 1),
		MinDLI:     round(minD, 2),
		MaxDLI:     round(maxD, 2),
		AverageDLI: round(sumD/n, 2),
		PointCount: len(points),
	}, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
