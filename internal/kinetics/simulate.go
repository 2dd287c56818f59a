package kinetics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// Simulate integrates one individual's disposition through the dose schedule
// and samples it at the given times. A sample falling exactly on a dose
// instant observes the post-dose state, so a single bolus D at time zero
// yields C(0) = D/V1.
func Simulate(sched *Schedule, p models.ParameterSet, times []float64) (models.Trace, error) {
	return walk(sched, p, times, true)
}

// SimulateTroughs samples the pre-dose state instead: at a dose instant the
// observation is the left limit, before the bolus lands. Troughs are the
// protection criterion's view of the regimen.
func SimulateTroughs(sched *Schedule, p models.ParameterSet, times []float64) (models.Trace, error) {
	return walk(sched, p, times, false)
}

func walk(sched *Schedule, p models.ParameterSet, times []float64, doseFirst bool) (models.Trace, error) {
	if err := validateTimes(times); err != nil {
		return models.Trace{}, err
	}
	d, err := newDisposition(p)
	if err != nil {
		return models.Trace{}, err
	}

	state := mat.NewVecDense(2, nil)
	now := 0.0
	next := 0

	trace := models.Trace{
		Individual: p.ID,
		Samples:    make([]models.Sample, 0, len(times)),
	}
	for _, t := range times {
		// Apply every dose strictly before t; a dose exactly at t lands
		// first only for post-dose observation.
		for next < len(sched.events) {
			et := sched.events[next].TimeDays
			if et > t || (et == t && !doseFirst) {
				break
			}
			d.advance(state, et-now)
			now = et
			state.SetVec(0, state.AtVec(0)+sched.events[next].AmountMg)
			next++
		}
		d.advance(state, t-now)
		now = t

		sample := models.Sample{
			TimeDays:      t,
			Central:       state.AtVec(0),
			Peripheral:    state.AtVec(1),
			Concentration: state.AtVec(0) / d.v1,
		}
		if err := checkSample(p.ID, sample); err != nil {
			return models.Trace{}, err
		}
		trace.Samples = append(trace.Samples, sample)
	}
	return trace, nil
}

func validateTimes(times []float64) error {
	if len(times) == 0 {
		return &models.InvalidArgumentError{
			Field:  "times",
			Reason: "at least one observation time is required",
		}
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return &models.InvalidArgumentError{
				Field:  "times",
				Reason: fmt.Sprintf("time %d must be non-negative and finite, got %v", i, t),
			}
		}
		if i > 0 && t <= times[i-1] {
			return &models.InvalidArgumentError{
				Field:  "times",
				Reason: fmt.Sprintf("times must be strictly increasing (%v after %v)", t, times[i-1]),
			}
		}
	}
	return nil
}

// checkSample rejects negative or non-finite amounts instead of clamping
// them, so numerical trouble surfaces with its location.
func checkSample(individual int, s models.Sample) error {
	quantities := []struct {
		name  string
		value float64
	}{
		{"central_mg", s.Central},
		{"peripheral_mg", s.Peripheral},
		{"concentration_mg_per_l", s.Concentration},
	}
	for _, q := range quantities {
		if math.IsNaN(q.value) || math.IsInf(q.value, 0) || q.value < 0 {
			return &models.NumericalInstabilityError{
				Quantity:   q.name,
				Individual: individual,
				TimeDays:   s.TimeDays,
				Value:      q.value,
			}
		}
	}
	return nil
}
