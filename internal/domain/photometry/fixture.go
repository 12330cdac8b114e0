// Package photometry computes PPFD and DLI distributions over a room
// footprint. It builds a sample lattice, sums inverse-square contributions
// from every fixture, adaptively refines cells with steep gradients, and
// reduces the result into iso-PPFD contours and summary statistics.
//
// The package is pure: no I/O, no logging, no state between calls.
package photometry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// DefaultBeamAngle is used when a fixture carries no positive beam angle.
const DefaultBeamAngle = 120.0

// ─────────────────────────────────────────────────────────────────────────────
// Output source
// ─────────────────────────────────────────────────────────────────────────────

// OutputKind tags which variant an OutputSource holds.
type OutputKind int

const (
	// OutputUnknown marks a fixture with neither a photon output nor a
	// wattage/efficacy pair. It contributes zero.
	OutputUnknown OutputKind = iota
	OutputExplicit
	OutputDerived
)

func (k OutputKind) String() string {
	switch k {
	case OutputExplicit:
		return "explicit"
	case OutputDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// OutputSource is the photon flux of a fixture, either stated directly (PPF,
// µmol/s) or derived from electrical power and photon efficacy (µmol/J).
// The zero value is OutputUnknown.
type OutputSource struct {
	kind     OutputKind
	ppf      float64
	wattage  float64
	efficacy float64
}

// ExplicitOutput returns a source with a stated PPF.
func ExplicitOutput(ppf float64) OutputSource {
	return OutputSource{kind: OutputExplicit, ppf: ppf}
}

// DerivedOutput returns a source whose PPF is wattage * efficacy.
func DerivedOutput(wattage, efficacy float64) OutputSource {
	return OutputSource{kind: OutputDerived, wattage: wattage, efficacy: efficacy}
}

// Kind returns the variant tag.
func (s OutputSource) Kind() OutputKind { return s.kind }

// Wattage returns the electrical power of a derived source, else 0.
func (s OutputSource) Wattage() float64 { return s.wattage }

// Efficacy returns the photon efficacy of a derived source, else 0.
func (s OutputSource) Efficacy() float64 { return s.efficacy }

// PPF returns the photon flux. Unknown sources and non-finite values yield 0.
func (s OutputSource) PPF() float64 {
	var v float64
	switch s.kind {
	case OutputExplicit:
		v = s.ppf
	case OutputDerived:
		v = s.wattage * s.efficacy
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

type outputSourceJSON struct {
	Kind     string  `json:"kind"`
	PPF      float64 `json:"ppf,omitempty"`
	Wattage  float64 `json:"wattage,omitempty"`
	Efficacy float64 `json:"efficacy,omitempty"`
}

// MarshalJSON encodes the tagged union as {"kind": ..., fields}.
func (s OutputSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputSourceJSON{
		Kind:     s.kind.String(),
		PPF:      s.ppf,
		Wattage:  s.wattage,
		Efficacy: s.efficacy,
	})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (s *OutputSource) UnmarshalJSON(data []byte) error {
	var raw outputSourceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "explicit":
		*s = ExplicitOutput(raw.PPF)
	case "derived":
		*s = DerivedOutput(raw.Wattage, raw.Efficacy)
	case "unknown", "":
		*s = OutputSource{}
	default:
		return fmt.Errorf("photometry: unknown output kind %q", raw.Kind)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Angular profile
// ─────────────────────────────────────────────────────────────────────────────

// ProfileSample is one row of a tabulated angular distribution: relative
// intensity (0..1) at an angle from nadir in degrees.
type ProfileSample struct {
	Angle    float64 `json:"angle" yaml:"angle"`
	Relative float64 `json:"relative" yaml:"relative"`
}

// ValidateProfile checks a tabulated distribution: angles within [0,180],
// strictly increasing, relative intensities finite and non-negative.
func ValidateProfile(profile []ProfileSample) error {
	for i, s := range profile {
		if math.IsNaN(s.Angle) || s.Angle < 0 || s.Angle > 180 {
			return invalidParameter("profile sample %d: angle %v outside [0,180]", i, s.Angle)
		}
		if math.IsNaN(s.Relative) || math.IsInf(s.Relative, 0) || s.Relative < 0 {
			return invalidParameter("profile sample %d: relative intensity %v must be finite and >= 0", i, s.Relative)
		}
		if i > 0 && s.Angle <= profile[i-1].Angle {
			return invalidParameter("profile sample %d: angles must be strictly increasing", i)
		}
	}
	return nil
}

// profileWeight interpolates a validated profile. Angles past the last
// sample weigh zero.
func profileWeight(profile []ProfileSample, angle float64) float64 {
	n := len(profile)
	if angle > profile[n-1].Angle {
		return 0
	}
	if angle <= profile[0].Angle {
		return clampUnit(profile[0].Relative)
	}
	i := sort.Search(n, func(i int) bool { return profile[i].Angle >= angle })
	lo, hi := profile[i-1], profile[i]
	t := (angle - lo.Angle) / (hi.Angle - lo.Angle)
	return clampUnit(lo.Relative + t*(hi.Relative-lo.Relative))
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixture
// ─────────────────────────────────────────────────────────────────────────────

// Fixture is a light source in room-local coordinates (metres). It is read
// only for the duration of a calculation.
type Fixture struct {
	ID      string
	X, Y, Z float64
	Enabled bool
	Output  OutputSource

	// BeamAngle is the full beam width in degrees. Values <= 0 use
	// DefaultBeamAngle.
	BeamAngle float64

	// Profile, when non-empty, replaces the beam-angle falloff rule.
	Profile []ProfileSample

	// Dimming is the output level in percent, clamped to [0,100].
	Dimming float64
}

// EffectivePPF is the photon flux after dimming.
func (f Fixture) EffectivePPF() float64 {
	return f.Output.PPF() * clampPercent(f.Dimming) / 100
}

func (f Fixture) halfBeam() float64 {
	beam := f.BeamAngle
	if !(beam > 0) || math.IsInf(beam, 0) {
		beam = DefaultBeamAngle
	}
	return beam / 2
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
