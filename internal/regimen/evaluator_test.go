package regimen

import (
	"errors"
	"math"
	"testing"

	"github.com/ryantjarrett/CTSI-2024/internal/response"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

func protoParams() models.ParameterSet {
	return models.ParameterSet{
		Clearance:          0.05,
		CentralVolume:      2.75,
		IntercompClearance: 0.25,
		PeripheralVolume:   2.75,
		IC50:               1.0,
		MaxEffect:          0.95,
		Slope:              1.5,
		HalfMaxTiter:       1.0,
	}
}

func uniformCohort(n int) []models.ParameterSet {
	cohort := make([]models.ParameterSet, n)
	for i := range cohort {
		p := protoParams()
		p.ID = i
		cohort[i] = p
	}
	return cohort
}

func testEvaluator(metric models.Metric, target float64) Evaluator {
	return Evaluator{
		Population:        uniformCohort(3),
		Metric:            metric,
		Target:            target,
		LowerTailFraction: 0.10,
		IntervalDays:      180,
		CoverageDays:      365,
		Transform:         response.DefaultTransform(),
	}
}

func TestMarginHandComputed(t *testing.T) {
	// One 180-day interval of the typical individual: 1000 mg gives a
	// trough near 34.59 mg/L, and the first trough is the regimen's worst.
	eval := testEvaluator(models.MetricConcentration, 30)
	margin, err := eval.Margin(1000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(margin-4.59) > 0.1 {
		t.Errorf("margin = %v, want about 4.59", margin)
	}
}

func TestMarginMonotoneInDose(t *testing.T) {
	eval := testEvaluator(models.MetricConcentration, 30)
	var last float64 = math.Inf(-1)
	for _, dose := range []float64{250, 500, 1000, 2000, 4000} {
		margin, err := eval.Margin(dose, 0)
		if err != nil {
			t.Fatalf("dose %v: unexpected error: %v", dose, err)
		}
		if margin <= last {
			t.Errorf("margin(%v) = %v, want above %v", dose, margin, last)
		}
		last = margin
	}
}

func TestMarginLoadingDoseRaises(t *testing.T) {
	eval := testEvaluator(models.MetricConcentration, 30)
	plain, err := eval.Margin(1000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := eval.Margin(1000, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded <= plain {
		t.Errorf("margin with loading = %v, want above %v", loaded, plain)
	}
}

func TestMarginEfficacyMetric(t *testing.T) {
	eval := testEvaluator(models.MetricEfficacy, 50)
	low, err := eval.Margin(500, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high, err := eval.Margin(5000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if high <= low {
		t.Errorf("efficacy margin should rise with dose: %v then %v", low, high)
	}
	if low < -50 || high > 50 {
		t.Errorf("efficacy margins out of range: %v, %v", low, high)
	}
}

func TestMarginQuantileOrdering(t *testing.T) {
	// Two individuals, the second clearing drug twice as fast. The lower
	// tail must follow the fast clearer, the upper tail the slow one.
	slow := protoParams()
	fast := protoParams()
	fast.ID = 1
	fast.Clearance *= 2

	base := Evaluator{
		Population:   []models.ParameterSet{slow, fast},
		Metric:       models.MetricConcentration,
		Target:       30,
		IntervalDays: 180,
		CoverageDays: 365,
		Transform:    response.DefaultTransform(),
	}

	var margins []float64
	for _, fraction := range []float64{0, 0.5, 1} {
		eval := base
		eval.LowerTailFraction = fraction
		m, err := eval.Margin(1000, 0)
		if err != nil {
			t.Fatalf("fraction %v: unexpected error: %v", fraction, err)
		}
		margins = append(margins, m)
	}
	if !(margins[0] < margins[1] && margins[1] < margins[2]) {
		t.Errorf("margins %v should rise with the protected fraction", margins)
	}
}

func TestCurveShape(t *testing.T) {
	eval := testEvaluator(models.MetricConcentration, 30)
	points, err := eval.Curve(1000, 500, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 366 {
		t.Fatalf("len(points) = %d, want 366 daily samples over 365 days", len(points))
	}
	if points[0].TimeDays != 0 {
		t.Errorf("first point at t=%v, want 0", points[0].TimeDays)
	}
	if points[len(points)-1].TimeDays != 365 {
		t.Errorf("last point at t=%v, want 365", points[len(points)-1].TimeDays)
	}

	// All three doses land at t=0 for the first point, post-dose.
	wantPeak := 1500.0 / 2.75
	if math.Abs(points[0].P50-wantPeak) > 1e-9 {
		t.Errorf("P50 at t=0 = %v, want %v", points[0].P50, wantPeak)
	}

	for _, pt := range points {
		if pt.P10 > pt.P50 || pt.P50 > pt.P90 {
			t.Errorf("percentiles out of order at t=%v: %v, %v, %v", pt.TimeDays, pt.P10, pt.P50, pt.P90)
		}
		if pt.P10 <= 0 {
			t.Errorf("P10 at t=%v is %v, want positive", pt.TimeDays, pt.P10)
		}
	}
}

func TestCurveCoarseStepKeepsCoverageEnd(t *testing.T) {
	eval := testEvaluator(models.MetricConcentration, 30)
	points, err := eval.Curve(1000, 0, 400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[0].TimeDays != 0 || points[1].TimeDays != 365 {
		t.Errorf("times = %v, %v, want 0 and 365", points[0].TimeDays, points[1].TimeDays)
	}
}

func TestCurveInvalidStep(t *testing.T) {
	eval := testEvaluator(models.MetricConcentration, 30)
	for _, step := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := eval.Curve(1000, 0, step)
		var invalid *models.InvalidArgumentError
		if !errors.As(err, &invalid) {
			t.Errorf("step %v: want InvalidArgumentError, got %v", step, err)
		}
	}
}

func TestEvaluatorValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Evaluator)
	}{
		{"empty population", func(e *Evaluator) { e.Population = nil }},
		{"unknown metric", func(e *Evaluator) { e.Metric = "AUC" }},
		{"nan target", func(e *Evaluator) { e.Target = math.NaN() }},
		{"fraction above one", func(e *Evaluator) { e.LowerTailFraction = 1.5 }},
		{"negative fraction", func(e *Evaluator) { e.LowerTailFraction = -0.1 }},
		{"zero interval", func(e *Evaluator) { e.IntervalDays = 0 }},
		{"infinite coverage", func(e *Evaluator) { e.CoverageDays = math.Inf(1) }},
	}
	for _, tc := range cases {
		eval := testEvaluator(models.MetricConcentration, 30)
		tc.mutate(&eval)
		err := eval.Validate()
		var invalid *models.InvalidArgumentError
		if !errors.As(err, &invalid) {
			t.Errorf("%s: want InvalidArgumentError, got %v", tc.name, err)
		}
	}

	eval := testEvaluator(models.MetricConcentration, 30)
	if err := eval.Validate(); err != nil {
		t.Errorf("valid evaluator rejected: %v", err)
	}
}

func TestMarginInvalidDose(t *testing.T) {
	eval := testEvaluator(models.MetricConcentration, 30)
	_, err := eval.Margin(-100, 0)
	var invalid *models.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Errorf("want InvalidArgumentError for a negative dose, got %v", err)
	}
}
