package regimen

import (
	"fmt"
	"math"

	"github.com/ryantjarrett/CTSI-2024/internal/criterion"
	"github.com/ryantjarrett/CTSI-2024/internal/kinetics"
	"github.com/ryantjarrett/CTSI-2024/internal/response"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
	"github.com/ryantjarrett/CTSI-2024/pkg/utils"
)

// Evaluator scores candidate doses against a sampled population. It owns
// the regimen shape (interval, coverage window), the protection metric and
// its target, and the population quantile the criterion guards.
//
// An Evaluator is safe for concurrent use: every call builds its own
// schedule and simulation state, and the population is only read.
type Evaluator struct {
	Population        []models.ParameterSet
	Metric            models.Metric
	Target            float64
	LowerTailFraction float64
	IntervalDays      float64
	CoverageDays      float64
	Transform         response.Transform
}

// Validate checks the evaluator is fully specified.
func (e Evaluator) Validate() error {
	if len(e.Population) == 0 {
		return &models.InvalidArgumentError{Field: "population", Reason: "at least one individual is required"}
	}
	if e.Metric != models.MetricConcentration && e.Metric != models.MetricEfficacy {
		return &models.InvalidArgumentError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", e.Metric)}
	}
	if math.IsNaN(e.Target) || math.IsInf(e.Target, 0) {
		return &models.InvalidArgumentError{Field: "target", Reason: "target must be finite"}
	}
	if math.IsNaN(e.LowerTailFraction) || e.LowerTailFraction < 0 || e.LowerTailFraction > 1 {
		return &models.InvalidArgumentError{Field: "lower_tail_fraction", Reason: "fraction must be in [0, 1]"}
	}
	for name, v := range map[string]float64{
		"interval_days": e.IntervalDays,
		"coverage_days": e.CoverageDays,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return &models.InvalidArgumentError{Field: name, Reason: "must be positive and finite"}
		}
	}
	return nil
}

// Margin builds the regimen for the candidate doses, simulates every
// individual's troughs, and returns the criterion margin: the worst trough's
// lower-tail quantile minus the target. Positive means protected.
func (e Evaluator) Margin(repeatedMg, loadingMg float64) (float64, error) {
	sched, err := kinetics.BuildRegimen(repeatedMg, loadingMg, e.IntervalDays, e.CoverageDays)
	if err != nil {
		return 0, err
	}
	troughs := kinetics.TroughTimes(e.IntervalDays, e.CoverageDays)

	values := make([][]float64, len(troughs))
	for i := range values {
		values[i] = make([]float64, len(e.Population))
	}
	for j, p := range e.Population {
		trace, err := kinetics.SimulateTroughs(sched, p, troughs)
		if err != nil {
			return 0, err
		}
		for i, s := range trace.Samples {
			v, err := e.metricValue(s.Concentration, p)
			if err != nil {
				return 0, err
			}
			values[i][j] = v
		}
	}
	return criterion.Margin(values, e.LowerTailFraction, e.Target)
}

// Curve simulates the population at the given doses on a fixed time grid
// over the coverage window and reduces each time point to its 10th, 50th
// and 90th percentiles. Samples on dose instants observe the post-dose
// state, so the curve shows the peaks.
func (e Evaluator) Curve(repeatedMg, loadingMg, stepDays float64) ([]models.CurvePoint, error) {
	if math.IsNaN(stepDays) || math.IsInf(stepDays, 0) || stepDays <= 0 {
		return nil, &models.InvalidArgumentError{Field: "curve_step_days", Reason: "step must be positive and finite"}
	}
	sched, err := kinetics.BuildRegimen(repeatedMg, loadingMg, e.IntervalDays, e.CoverageDays)
	if err != nil {
		return nil, err
	}

	// Multiply the index instead of accumulating the step, so long grids
	// do not drift.
	n := int(math.Floor(e.CoverageDays/stepDays + 1e-9))
	times := make([]float64, 0, n+2)
	for i := 0; i <= n; i++ {
		times = append(times, float64(i)*stepDays)
	}
	if times[len(times)-1] < e.CoverageDays {
		times = append(times, e.CoverageDays)
	}

	matrix := make([][]float64, len(times))
	for i := range matrix {
		matrix[i] = make([]float64, len(e.Population))
	}
	for j, p := range e.Population {
		trace, err := kinetics.Simulate(sched, p, times)
		if err != nil {
			return nil, err
		}
		for i, s := range trace.Samples {
			v, err := e.metricValue(s.Concentration, p)
			if err != nil {
				return nil, err
			}
			matrix[i][j] = v
		}
	}

	points := make([]models.CurvePoint, len(times))
	for i, t := range times {
		points[i] = models.CurvePoint{
			TimeDays: t,
			P10:      utils.Quantile(matrix[i], 0.10),
			P50:      utils.Quantile(matrix[i], 0.50),
			P90:      utils.Quantile(matrix[i], 0.90),
		}
	}
	return points, nil
}

func (e Evaluator) metricValue(concentration float64, p models.ParameterSet) (float64, error) {
	if e.Metric == models.MetricEfficacy {
		return e.Transform.Efficacy(concentration, p)
	}
	return concentration, nil
}
