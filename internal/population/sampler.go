// Package population draws virtual cohorts for dosing simulations. Each
// individual is a parameter set sampled log-normally around the typical
// values, so parameters stay positive and spread multiplicatively.
package population

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
	"github.com/ryantjarrett/CTSI-2024/pkg/utils"
)

// Generate draws n parameter sets around the typical values using the given
// variability terms and seed. Draws are consumed in a fixed parameter order,
// so the same inputs always reproduce the same cohort bit for bit. A zero
// variability term fixes that parameter at its typical value exactly.
func Generate(n int, typical models.ParameterSet, terms models.Variability, seed uint64) ([]models.ParameterSet, error) {
	if n < 1 {
		return nil, &models.InvalidArgumentError{
			Field:  "size",
			Reason: fmt.Sprintf("population size must be at least 1, got %d", n),
		}
	}
	if err := validateTypical(typical); err != nil {
		return nil, err
	}
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	src := utils.NewSource(seed)
	cohort := make([]models.ParameterSet, n)
	for i := range cohort {
		cohort[i] = models.ParameterSet{
			ID:                 i,
			Clearance:          draw(src, typical.Clearance, terms.Clearance),
			CentralVolume:      draw(src, typical.CentralVolume, terms.CentralVolume),
			IntercompClearance: draw(src, typical.IntercompClearance, terms.IntercompClearance),
			PeripheralVolume:   draw(src, typical.PeripheralVolume, terms.PeripheralVolume),
			IC50:               draw(src, typical.IC50, terms.IC50),
			MaxEffect:          draw(src, typical.MaxEffect, terms.MaxEffect),
			Slope:              draw(src, typical.Slope, terms.Slope),
			HalfMaxTiter:       draw(src, typical.HalfMaxTiter, terms.HalfMaxTiter),
		}
	}
	return cohort, nil
}

// draw samples one log-normal value with median typical and log-SD eta.
// Zero eta returns the typical value without consuming from the source.
func draw(src rand.Source, typical, eta float64) float64 {
	if eta == 0 {
		return typical
	}
	dist := distuv.LogNormal{
		Mu:    math.Log(typical),
		Sigma: eta,
		Src:   src,
	}
	return dist.Rand()
}

func validateTypical(p models.ParameterSet) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"clearance_l_per_day", p.Clearance},
		{"central_volume_l", p.CentralVolume},
		{"intercompartmental_clearance_l_per_day", p.IntercompClearance},
		{"peripheral_volume_l", p.PeripheralVolume},
		{"ic50_mg_per_l", p.IC50},
		{"max_effect", p.MaxEffect},
		{"slope", p.Slope},
		{"half_max_titer", p.HalfMaxTiter},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value <= 0 {
			return &models.InvalidArgumentError{
				Field:  "typical." + f.name,
				Reason: fmt.Sprintf("must be positive and finite, got %v", f.value),
			}
		}
	}
	if p.MaxEffect <= 0.5 || p.MaxEffect > 1 {
		return &models.InvalidArgumentError{
			Field:  "typical.max_effect",
			Reason: fmt.Sprintf("must be in (0.5, 1], got %v", p.MaxEffect),
		}
	}
	return nil
}

func validateTerms(v models.Variability) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"clearance_l_per_day", v.Clearance},
		{"central_volume_l", v.CentralVolume},
		{"intercompartmental_clearance_l_per_day", v.IntercompClearance},
		{"peripheral_volume_l", v.PeripheralVolume},
		{"ic50_mg_per_l", v.IC50},
		{"max_effect", v.MaxEffect},
		{"slope", v.Slope},
		{"half_max_titer", v.HalfMaxTiter},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return &models.InvalidArgumentError{
				Field:  "variability." + f.name,
				Reason: fmt.Sprintf("must be non-negative and finite, got %v", f.value),
			}
		}
	}
	return nil
}
