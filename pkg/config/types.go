package config

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// PopulationSpec is the top-level population document. It describes the
// virtual cohort every simulation draws from: cohort size, sampling seed,
// typical parameter values and their between-subject variability.
type PopulationSpec struct {
	Population Population `yaml:"population" json:"population"`
}

// Population describes the virtual cohort.
type Population struct {
	Size        int                `yaml:"size" json:"size"`
	Seed        uint64             `yaml:"seed" json:"seed"`
	Typical     TypicalValues      `yaml:"typical" json:"typical"`
	Variability models.Variability `yaml:"variability,omitempty" json:"variability,omitempty"`
}

// TypicalValues holds the population-typical parameter values. Clearances
// are in L/day, volumes in L, IC50 in mg/L.
type TypicalValues struct {
	Clearance          float64 `yaml:"clearance_l_per_day" json:"clearance_l_per_day"`
	CentralVolume      float64 `yaml:"central_volume_l" json:"central_volume_l"`
	IntercompClearance float64 `yaml:"intercompartmental_clearance_l_per_day" json:"intercompartmental_clearance_l_per_day"`
	PeripheralVolume   float64 `yaml:"peripheral_volume_l" json:"peripheral_volume_l"`
	IC50               float64 `yaml:"ic50_mg_per_l" json:"ic50_mg_per_l"`
	MaxEffect          float64 `yaml:"max_effect" json:"max_effect"`
	Slope              float64 `yaml:"slope" json:"slope"`
	HalfMaxTiter       float64 `yaml:"half_max_titer" json:"half_max_titer"`
}

// ParameterSet converts the typical values into a parameter set with ID 0.
func (t TypicalValues) ParameterSet() models.ParameterSet {
	return models.ParameterSet{
		Clearance:          t.Clearance,
		CentralVolume:      t.CentralVolume,
		IntercompClearance: t.IntercompClearance,
		PeripheralVolume:   t.PeripheralVolume,
		IC50:               t.IC50,
		MaxEffect:          t.MaxEffect,
		Slope:              t.Slope,
		HalfMaxTiter:       t.HalfMaxTiter,
	}
}

// DefaultPopulationSpec returns the built-in cohort: a long-acting antibody
// with a terminal half-life around 80 days and moderate variability on
// clearance and central volume.
func DefaultPopulationSpec() *PopulationSpec {
	return &PopulationSpec{
		Population: Population{
			Size: 50,
			Seed: 20240601,
			Typical: TypicalValues{
				Clearance:          0.05,
				CentralVolume:      2.75,
				IntercompClearance: 0.25,
				PeripheralVolume:   2.75,
				IC50:               1.0,
				MaxEffect:          0.95,
				Slope:              1.5,
				HalfMaxTiter:       1.0,
			},
			Variability: models.Variability{
				Clearance:     0.25,
				CentralVolume: 0.30,
			},
		},
	}
}

// Fingerprint returns a stable hex digest of the population spec's canonical
// YAML encoding. Responses carry it so a recommendation can be tied to the
// exact population it was computed for.
func (s *PopulationSpec) Fingerprint() (string, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode population spec: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}
