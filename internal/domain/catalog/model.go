// Package catalog holds manufacturer fixture models. Calculation requests
// may reference a model instead of stating output inline.
package catalog

import (
	"math"
	"strings"
	"time"

	"github.com/turtacn/LumiGrid/internal/domain/photometry"
	"github.com/turtacn/LumiGrid/pkg/errors"
	"github.com/turtacn/LumiGrid/pkg/types/common"
)

// FixtureModel is a catalog entry describing a manufacturer's fixture.
// PPF is preferred over Wattage * Efficacy when both are set.
type FixtureModel struct {
	ID           string    `json:"id" yaml:"id"`
	Manufacturer string    `json:"manufacturer" yaml:"manufacturer"`
	Model        string    `json:"model" yaml:"model"`
	PPF          float64   `json:"ppf,omitempty" yaml:"ppf,omitempty"`
	Wattage      float64   `json:"wattage,omitempty" yaml:"wattage,omitempty"`
	Efficacy     float64   `json:"efficacy,omitempty" yaml:"efficacy,omitempty"`
	BeamAngle    float64   `json:"beam_angle,omitempty" yaml:"beam_angle,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

// NewFixtureModel creates a validated model with a fresh ID.
func NewFixtureModel(manufacturer, model string, ppf, wattage, efficacy, beamAngle float64) (*FixtureModel, error) {
	m := &FixtureModel{
		ID:           string(common.NewID()),
		Manufacturer: strings.TrimSpace(manufacturer),
		Model:        strings.TrimSpace(model),
		PPF:          ppf,
		Wattage:      wattage,
		Efficacy:     efficacy,
		BeamAngle:    beamAngle,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the entry carries a name and a usable output.
func (m *FixtureModel) Validate() error {
	if m.ID == "" {
		return errors.New(errors.ErrCodeValidation, "fixture model ID cannot be empty")
	}
	if m.Manufacturer == "" || m.Model == "" {
		return errors.New(errors.ErrCodeValidation, "manufacturer and model are required").WithDetail("id=" + m.ID)
	}
	for _, v := range []float64{m.PPF, m.Wattage, m.Efficacy, m.BeamAngle} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.New(errors.ErrCodeValidation, "numeric fields must be finite and non-negative").WithDetail("id=" + m.ID)
		}
	}
	if m.BeamAngle > 360 {
		return errors.Newf(errors.ErrCodeValidation, "beam angle %v exceeds 360", m.BeamAngle)
	}
	if m.OutputSource().PPF() <= 0 {
		return errors.New(errors.ErrCodeValidation, "model needs ppf or wattage and efficacy").WithDetail("id=" + m.ID)
	}
	return nil
}

// OutputSource resolves the model's photon output.
func (m *FixtureModel) OutputSource() photometry.OutputSource {
	switch {
	case m.PPF > 0:
		return photometry.ExplicitOutput(m.PPF)
	case m.Wattage > 0 && m.Efficacy > 0:
		return photometry.DerivedOutput(m.Wattage, m.Efficacy)
	default:
		return photometry.OutputSource{}
	}
}

// DisplayName is "Manufacturer Model".
func (m *FixtureModel) DisplayName() string {
	return m.Manufacturer + " " + m.Model
}
