package regimen

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ryantjarrett/CTSI-2024/internal/response"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

func testObjective(target float64) Objective {
	return Objective{
		Evaluator:          testEvaluator(models.MetricConcentration, target),
		NumDoses:           3,
		RepeatedMassWeight: 1,
		PenaltyWeight:      1e4,
	}
}

func TestObjectiveValue(t *testing.T) {
	obj := testObjective(30)
	margin, err := obj.Evaluator.Margin(1000, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, gotMargin, err := obj.Value(1000, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMargin != margin {
		t.Errorf("margin = %v, want %v", gotMargin, margin)
	}
	want := 3*1000 + 500 + 1e4*margin*margin
	if math.Abs(value-want) > 1e-9 {
		t.Errorf("objective = %v, want %v", value, want)
	}
}

func TestOptimizeFindsCheaperRegimen(t *testing.T) {
	obj := testObjective(30)

	// Equal-dose baseline: the repeated dose alone has to clear the target
	// at every trough.
	finder := RootFinder{Lower: 0, Upper: 20000, RelTolerance: 1e-8}
	baseline, _, err := finder.Solve(func(d float64) (float64, error) {
		return obj.Evaluator.Margin(d, 0)
	})
	if err != nil {
		t.Fatalf("baseline root search failed: %v", err)
	}
	baselineMass := 3 * baseline

	var progressCalls int
	firstObjective := math.Inf(1)
	lastObjective := math.Inf(1)
	opt := LoadingOptimizer{
		Bounds:         BoundTransform{Min: 1, Max: 20000},
		MaxIterations:  2000,
		MaxEvaluations: 10000,
		Progress: func(iteration int, repeatedMg, loadingMg, objective float64) {
			if progressCalls == 0 {
				firstObjective = objective
			}
			progressCalls++
			lastObjective = objective
		},
	}
	result, err := opt.Optimize(context.Background(), obj, baseline, baseline/2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Converged {
		t.Fatalf("optimizer did not converge: %+v", result)
	}

	mass := 3*result.RepeatedDoseMg + result.LoadingDoseMg
	if mass >= 0.97*baselineMass {
		t.Errorf("optimized mass %v, want clearly below the equal-dose mass %v", mass, baselineMass)
	}
	if result.LoadingDoseMg <= 0 {
		t.Errorf("loading dose = %v, want positive", result.LoadingDoseMg)
	}
	if math.Abs(result.CriterionMargin) > 0.5 {
		t.Errorf("criterion margin at the optimum = %v, want near zero", result.CriterionMargin)
	}
	if result.Iterations < 1 || result.FuncEvaluations < 3 {
		t.Errorf("stats look empty: %+v", result)
	}
	if progressCalls == 0 {
		t.Error("progress callback was never invoked")
	}
	if lastObjective > firstObjective {
		t.Errorf("objective rose from %v to %v across iterations", firstObjective, lastObjective)
	}
}

func TestOptimizeIterationLimit(t *testing.T) {
	obj := testObjective(30)
	opt := LoadingOptimizer{
		Bounds:         BoundTransform{Min: 1, Max: 20000},
		MaxIterations:  2,
		MaxEvaluations: 10000,
	}
	result, err := opt.Optimize(context.Background(), obj, 1000, 500)
	var failed *models.OptimizationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("want OptimizationFailedError, got %v", err)
	}
	if failed.Status != "IterationLimit" {
		t.Errorf("Status = %q, want IterationLimit", failed.Status)
	}
	if result.Converged {
		t.Error("result marked converged despite the budget error")
	}
	if result.Status != "IterationLimit" {
		t.Errorf("result.Status = %q, want IterationLimit", result.Status)
	}
	// The best iterate is still usable.
	if result.RepeatedDoseMg <= 1 || result.RepeatedDoseMg >= 20000 {
		t.Errorf("best repeated dose %v escaped the bounds", result.RepeatedDoseMg)
	}
	if math.IsNaN(result.Objective) || math.IsInf(result.Objective, 0) {
		t.Errorf("best objective = %v, want finite", result.Objective)
	}
}

func TestOptimizeEvaluationErrorSticks(t *testing.T) {
	bad := protoParams()
	bad.MaxEffect = 0.4
	obj := Objective{
		Evaluator: Evaluator{
			Population:        []models.ParameterSet{bad},
			Metric:            models.MetricEfficacy,
			Target:            50,
			LowerTailFraction: 0.10,
			IntervalDays:      180,
			CoverageDays:      365,
			Transform:         response.DefaultTransform(),
		},
		NumDoses:           3,
		RepeatedMassWeight: 1,
		PenaltyWeight:      1e4,
	}
	opt := LoadingOptimizer{
		Bounds:         BoundTransform{Min: 1, Max: 20000},
		MaxIterations:  50,
		MaxEvaluations: 200,
	}
	_, err := opt.Optimize(context.Background(), obj, 1000, 500)
	var domain *models.DomainError
	if !errors.As(err, &domain) {
		t.Fatalf("want the DomainError from the efficacy transform, got %v", err)
	}
}

func TestOptimizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opt := LoadingOptimizer{
		Bounds:         BoundTransform{Min: 1, Max: 20000},
		MaxIterations:  50,
		MaxEvaluations: 200,
	}
	_, err := opt.Optimize(ctx, testObjective(30), 1000, 500)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestOptimizeValidatesBounds(t *testing.T) {
	opt := LoadingOptimizer{Bounds: BoundTransform{Min: 10, Max: 10}}
	_, err := opt.Optimize(context.Background(), testObjective(30), 1000, 500)
	var invalid *models.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("want InvalidArgumentError, got %v", err)
	}
}
