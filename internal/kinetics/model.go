// Package kinetics simulates drug disposition in a linear two-compartment
// model. Amounts live in a central and a peripheral compartment; bolus doses
// land in the central compartment and the observed concentration is the
// central amount over the central volume. Between events the state advances
// exactly by the matrix exponential of the rate matrix, so step length never
// affects accuracy.
package kinetics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// disposition holds one individual's rate matrix and a cache of matrix
// exponential propagators keyed by step length. Regimens repeat the same
// interval, so a handful of propagators covers a whole simulation.
type disposition struct {
	rates       *mat.Dense
	v1          float64
	propagators map[float64]*mat.Dense
}

func newDisposition(p models.ParameterSet) (*disposition, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	k10 := p.Clearance / p.CentralVolume
	k12 := p.IntercompClearance / p.CentralVolume
	k21 := p.IntercompClearance / p.PeripheralVolume

	rates := mat.NewDense(2, 2, []float64{
		-(k10 + k12), k21,
		k12, -k21,
	})

	return &disposition{
		rates:       rates,
		v1:          p.CentralVolume,
		propagators: make(map[float64]*mat.Dense),
	}, nil
}

// propagator returns expm(rates*dt).
func (d *disposition) propagator(dt float64) *mat.Dense {
	if m, ok := d.propagators[dt]; ok {
		return m
	}

	var scaled mat.Dense
	scaled.Scale(dt, d.rates)
	var exp mat.Dense
	exp.Exp(&scaled)

	d.propagators[dt] = &exp
	return &exp
}

// advance moves the compartment state forward by dt in place.
func (d *disposition) advance(state *mat.VecDense, dt float64) {
	if dt == 0 {
		return
	}
	var next mat.VecDense
	next.MulVec(d.propagator(dt), state)
	state.CopyVec(&next)
}

func validateParams(p models.ParameterSet) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"clearance_l_per_day", p.Clearance},
		{"central_volume_l", p.CentralVolume},
		{"intercompartmental_clearance_l_per_day", p.IntercompClearance},
		{"peripheral_volume_l", p.PeripheralVolume},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value <= 0 {
			return &models.InvalidArgumentError{
				Field:  f.name,
				Reason: fmt.Sprintf("must be positive and finite, got %v", f.value),
			}
		}
	}
	return nil
}
