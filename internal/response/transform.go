// Package response maps serum concentration to protective efficacy through
// a sigmoid titer-response relation.
package response

import (
	"math"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// titerScale is the empirical calibration constant between the raw
// concentration-to-IC50 ratio and the titer axis the sigmoid was fit on.
const titerScale = 347.6

// DefaultTiterFloor replaces non-positive scaled titers before the log is
// taken, so zero concentration maps to near-zero efficacy instead of NaN.
const DefaultTiterFloor = 1e-12

// Transform converts concentrations into protective efficacy percentages.
type Transform struct {
	TiterFloor float64
}

// DefaultTransform returns a transform with the default titer floor.
func DefaultTransform() Transform {
	return Transform{TiterFloor: DefaultTiterFloor}
}

// Efficacy maps a serum concentration in mg/L to protective efficacy in
// percent for one individual:
//
//	titer  = C / IC50
//	scaled = titer / 347.6
//	eff%   = 100·M / (1 + (2M−1)·exp(−slope·(log10(scaled) − log10(H))))
//
// The half-max titer H enters unscaled; the scaling applies to the observed
// titer only. At scaled == H the efficacy is exactly 50% for any MaxEffect
// in (0.5, 1], and the upper asymptote is 100·MaxEffect.
func (tr Transform) Efficacy(concentrationMgL float64, p models.ParameterSet) (float64, error) {
	if err := tr.validate(p); err != nil {
		return 0, err
	}
	if math.IsNaN(concentrationMgL) || math.IsInf(concentrationMgL, 0) || concentrationMgL < 0 {
		return 0, &models.NumericalInstabilityError{
			Quantity:   "concentration_mg_per_l",
			Individual: p.ID,
			TimeDays:   math.NaN(),
			Value:      concentrationMgL,
		}
	}

	scaled := concentrationMgL / p.IC50 / titerScale
	if scaled < tr.TiterFloor {
		scaled = tr.TiterFloor
	}

	shift := math.Log10(scaled) - math.Log10(p.HalfMaxTiter)
	denom := 1 + (2*p.MaxEffect-1)*math.Exp(-p.Slope*shift)
	return 100 * p.MaxEffect / denom, nil
}

func (tr Transform) validate(p models.ParameterSet) error {
	if math.IsNaN(tr.TiterFloor) || math.IsInf(tr.TiterFloor, 0) || tr.TiterFloor <= 0 {
		return &models.DomainError{
			Quantity: "titer_floor",
			Value:    tr.TiterFloor,
			Reason:   "must be positive and finite",
		}
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"ic50_mg_per_l", p.IC50},
		{"slope", p.Slope},
		{"half_max_titer", p.HalfMaxTiter},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value <= 0 {
			return &models.DomainError{
				Quantity: f.name,
				Value:    f.value,
				Reason:   "must be positive and finite",
			}
		}
	}

	// The sigmoid needs 2·MaxEffect−1 > 0 or the denominator can vanish.
	if p.MaxEffect <= 0.5 || p.MaxEffect > 1 {
		return &models.DomainError{
			Quantity: "max_effect",
			Value:    p.MaxEffect,
			Reason:   "must be in (0.5, 1]",
		}
	}
	return nil
}
