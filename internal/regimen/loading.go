package regimen

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// Objective is the penalized total-mass objective of the loading-dose
// search: the administered mass over the coverage window plus a quadratic
// penalty on the criterion margin. The penalty pulls the margin to zero, so
// the minimizer lands where the criterion is exactly tight at the least
// mass.
type Objective struct {
	Evaluator          Evaluator
	NumDoses           int
	RepeatedMassWeight float64
	PenaltyWeight      float64
}

// Value evaluates the objective at physical doses, returning the objective
// and the criterion margin it was built from.
func (o Objective) Value(repeatedMg, loadingMg float64) (objective, margin float64, err error) {
	margin, err = o.Evaluator.Margin(repeatedMg, loadingMg)
	if err != nil {
		return 0, 0, err
	}
	mass := o.RepeatedMassWeight*repeatedMg*float64(o.NumDoses) + loadingMg
	return mass + o.PenaltyWeight*margin*margin, margin, nil
}

// LoadingResult is the outcome of a loading-dose search. On budget
// exhaustion it still carries the best iterate found.
type LoadingResult struct {
	RepeatedDoseMg  float64
	LoadingDoseMg   float64
	Objective       float64
	CriterionMargin float64
	Converged       bool
	Status          string
	Iterations      int
	FuncEvaluations int
}

// LoadingOptimizer minimizes an Objective over bounded (repeated, loading)
// dose pairs with Nelder-Mead. The box constraint is enforced by running
// the simplex in logistic-transformed coordinates.
type LoadingOptimizer struct {
	Bounds         BoundTransform
	MaxIterations  int
	MaxEvaluations int
	MaxRuntime     time.Duration

	// Progress, when set, is called after every accepted iteration with
	// the current best doses and objective.
	Progress func(iteration int, repeatedMg, loadingMg, objective float64)
}

// Optimize searches for the dose pair minimizing obj, starting from the
// given physical doses. Budget exhaustion returns the best iterate together
// with an OptimizationFailedError; evaluation errors and context
// cancellation abort the search.
func (l LoadingOptimizer) Optimize(ctx context.Context, obj Objective, initialRepeatedMg, initialLoadingMg float64) (LoadingResult, error) {
	if err := l.Bounds.Validate(); err != nil {
		return LoadingResult{}, err
	}
	if err := obj.Evaluator.Validate(); err != nil {
		return LoadingResult{}, err
	}

	// The first evaluation error sticks and poisons every later candidate,
	// so the simplex cannot wander on after the model has failed.
	var evalErr error
	fn := func(u []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		if err := ctx.Err(); err != nil {
			evalErr = err
			return math.Inf(1)
		}
		value, _, err := obj.Value(l.Bounds.Apply(u[0]), l.Bounds.Apply(u[1]))
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return value
	}

	x0 := []float64{l.Bounds.Invert(initialRepeatedMg), l.Bounds.Invert(initialLoadingMg)}
	settings := &optimize.Settings{
		MajorIterations: l.MaxIterations,
		FuncEvaluations: l.MaxEvaluations,
		Runtime:         l.MaxRuntime,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Relative:   1e-8,
			Iterations: 40,
		},
	}
	if l.Progress != nil {
		settings.Recorder = &progressRecorder{bounds: l.Bounds, callback: l.Progress}
	}

	res, err := optimize.Minimize(optimize.Problem{Func: fn}, x0, settings, &optimize.NelderMead{})
	if evalErr != nil {
		return LoadingResult{}, evalErr
	}
	if err != nil {
		return LoadingResult{}, fmt.Errorf("loading dose search failed: %w", err)
	}

	repeated := l.Bounds.Apply(res.Location.X[0])
	loading := l.Bounds.Apply(res.Location.X[1])

	// The optimizer only tracked the scalar objective; recompute the margin
	// at the solution for diagnostics.
	objective, margin, err := obj.Value(repeated, loading)
	if err != nil {
		return LoadingResult{}, err
	}

	result := LoadingResult{
		RepeatedDoseMg:  repeated,
		LoadingDoseMg:   loading,
		Objective:       objective,
		CriterionMargin: margin,
		Status:          res.Status.String(),
		Iterations:      res.Stats.MajorIterations,
		FuncEvaluations: res.Stats.FuncEvaluations,
	}

	switch res.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		return result, &models.OptimizationFailedError{
			Status:            result.Status,
			Iterations:        result.Iterations,
			FuncEvaluations:   result.FuncEvaluations,
			BestObjective:     result.Objective,
			CriterionResidual: result.CriterionMargin,
		}
	}

	result.Converged = true
	return result, nil
}

// progressRecorder forwards accepted iterates to the progress callback,
// mapped back to physical doses.
type progressRecorder struct {
	bounds   BoundTransform
	callback func(iteration int, repeatedMg, loadingMg, objective float64)
}

func (r *progressRecorder) Init() error { return nil }

func (r *progressRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	r.callback(stats.MajorIterations, r.bounds.Apply(loc.X[0]), r.bounds.Apply(loc.X[1]), loc.F)
	return nil
}
