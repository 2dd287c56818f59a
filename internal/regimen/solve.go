package regimen

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ryantjarrett/CTSI-2024/internal/kinetics"
	"github.com/ryantjarrett/CTSI-2024/internal/population"
	"github.com/ryantjarrett/CTSI-2024/internal/response"
	"github.com/ryantjarrett/CTSI-2024/pkg/config"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
	"github.com/ryantjarrett/CTSI-2024/pkg/utils"
)

// Progress receives coarse solver progress: the optimizer iteration count
// and the best objective value seen so far.
type Progress func(iteration int, bestObjective float64)

// Solver answers dosing questions over a sampled population. A nil
// population spec falls back to the built-in default cohort.
type Solver struct {
	engine config.Engine
}

// NewSolver returns a solver with the given engine settings.
func NewSolver(engine config.Engine) *Solver {
	return &Solver{engine: engine}
}

// Solve recommends a regimen for the request. Without a loading dose the
// repeated dose is bracketed and solved as a root of the criterion margin;
// with one, both doses are optimized jointly under the penalized mass
// objective. Doses are rounded up to the request's increment and the
// projected percentile curve is simulated at the rounded regimen.
//
// When the optimizer exhausts its budget the best iterate is still rounded,
// simulated and returned, together with an OptimizationFailedError and
// Converged set to false.
func (s *Solver) Solve(ctx context.Context, req models.SolveRequest, spec *config.PopulationSpec) (*models.SolveResponse, error) {
	return s.SolveWithProgress(ctx, req, spec, nil)
}

// SolveWithProgress is Solve with a progress callback, used by the job
// executor to stream optimizer state.
func (s *Solver) SolveWithProgress(ctx context.Context, req models.SolveRequest, spec *config.PopulationSpec, progress Progress) (*models.SolveResponse, error) {
	pr, err := s.prepare(req, spec)
	if err != nil {
		return nil, err
	}

	var (
		raw      LoadingResult
		solveErr error
	)
	if req.LoadingDoseEnabled {
		raw, solveErr = s.solveLoading(ctx, req, pr, progress)
	} else {
		raw, solveErr = s.solveRoot(ctx, pr)
	}
	if solveErr != nil {
		// Budget exhaustion still carries a usable iterate; everything
		// else aborts the solve.
		var failed *models.OptimizationFailedError
		if !errors.As(solveErr, &failed) {
			return nil, solveErr
		}
	}

	recommendedDose := utils.CeilToIncrement(raw.RepeatedDoseMg, req.DoseIncrementMg)
	recommendedLoading := utils.CeilToIncrement(raw.LoadingDoseMg, req.DoseIncrementMg)

	curve, err := pr.eval.Curve(recommendedDose, recommendedLoading, s.engine.CurveStepDays)
	if err != nil {
		return nil, err
	}

	fingerprint, err := pr.spec.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint population: %w", err)
	}

	resp := &models.SolveResponse{
		RecommendedDoseMg:        recommendedDose,
		RecommendedLoadingDoseMg: recommendedLoading,
		RawDoseMg:                raw.RepeatedDoseMg,
		RawLoadingDoseMg:         raw.LoadingDoseMg,
		Converged:                raw.Converged,
		Metric:                   pr.eval.Metric,
		PopulationSize:           pr.spec.Population.Size,
		Seed:                     pr.spec.Population.Seed,
		PopulationFingerprint:    fingerprint,
		Diagnostics: models.Diagnostics{
			Iterations:        raw.Iterations,
			FuncEvaluations:   raw.FuncEvaluations,
			FinalObjective:    raw.Objective,
			CriterionResidual: raw.CriterionMargin,
			Status:            raw.Status,
		},
		ProjectedCurve: curve,
	}
	return resp, solveErr
}

// Surface evaluates the criterion margin and objective over a dose grid,
// for exploring the landscape around a recommendation.
func (s *Solver) Surface(ctx context.Context, req models.SolveRequest, spec *config.PopulationSpec, repeated, loading Axis) ([]SurfacePoint, error) {
	pr, err := s.prepare(req, spec)
	if err != nil {
		return nil, err
	}
	return evaluateSurface(ctx, pr.objective(req, s.engine), repeated, loading, s.engine.MaxParallel)
}

// solveRoot brackets the repeated dose and finds where the criterion margin
// crosses zero. The loading dose stays zero.
func (s *Solver) solveRoot(ctx context.Context, pr *prepared) (LoadingResult, error) {
	finder := RootFinder{
		Lower:         0,
		Upper:         s.engine.RootBracketMaxMg,
		RelTolerance:  s.engine.RelTolerance,
		MaxIterations: s.engine.MaxIterations,
	}
	root, stats, err := finder.Solve(func(dose float64) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return pr.eval.Margin(dose, 0)
	})
	if err != nil {
		var failed *models.OptimizationFailedError
		if !errors.As(err, &failed) {
			return LoadingResult{}, err
		}
		return LoadingResult{
			RepeatedDoseMg:  root,
			CriterionMargin: failed.CriterionResidual,
			Objective:       failed.BestObjective,
			Status:          failed.Status,
			Iterations:      stats.Iterations,
			FuncEvaluations: stats.FuncEvaluations,
		}, err
	}

	margin, err := pr.eval.Margin(root, 0)
	if err != nil {
		return LoadingResult{}, err
	}
	return LoadingResult{
		RepeatedDoseMg:  root,
		CriterionMargin: margin,
		Objective:       math.Abs(margin),
		Converged:       true,
		Status:          "Converged",
		Iterations:      stats.Iterations,
		FuncEvaluations: stats.FuncEvaluations,
	}, nil
}

// solveLoading optimizes repeated and loading dose jointly.
func (s *Solver) solveLoading(ctx context.Context, req models.SolveRequest, pr *prepared, progress Progress) (LoadingResult, error) {
	opt := LoadingOptimizer{
		Bounds:         BoundTransform{Min: s.engine.DoseMinMg, Max: s.engine.DoseMaxMg},
		MaxIterations:  s.engine.MaxIterations,
		MaxEvaluations: s.engine.MaxEvaluations,
		MaxRuntime:     s.engine.MaxRuntime(),
	}
	if progress != nil {
		opt.Progress = func(iteration int, repeatedMg, loadingMg, objective float64) {
			progress(iteration, objective)
		}
	}

	initialLoading := req.InitialLoadingDoseMg
	if initialLoading <= 0 {
		initialLoading = req.InitialDoseMg
	}
	return opt.Optimize(ctx, pr.objective(req, s.engine), req.InitialDoseMg, initialLoading)
}

// prepared carries the sampled cohort and evaluator shared by the solve and
// surface paths.
type prepared struct {
	eval Evaluator
	spec config.PopulationSpec
}

func (pr *prepared) objective(req models.SolveRequest, engine config.Engine) Objective {
	penalty := engine.PenaltyWeight
	if req.PenaltyWeight > 0 {
		penalty = req.PenaltyWeight
	}
	return Objective{
		Evaluator:          pr.eval,
		NumDoses:           kinetics.NumScheduledDoses(req.DosingIntervalDays, req.CoverageDurationDays),
		RepeatedMassWeight: engine.RepeatedMassWeight,
		PenaltyWeight:      penalty,
	}
}

func (s *Solver) prepare(req models.SolveRequest, spec *config.PopulationSpec) (*prepared, error) {
	metric, target, err := validateRequest(req)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		spec = config.DefaultPopulationSpec()
	}

	// The request may pin the typical IC50, reflecting an assay update.
	// Work on a copy so the caller's spec stays untouched; the fingerprint
	// must describe the population actually sampled.
	effective := *spec
	if req.IC50MgL > 0 {
		effective.Population.Typical.IC50 = req.IC50MgL
	}

	cohort, err := population.Generate(
		effective.Population.Size,
		effective.Population.Typical.ParameterSet(),
		effective.Population.Variability,
		effective.Population.Seed,
	)
	if err != nil {
		return nil, err
	}

	eval := Evaluator{
		Population:        cohort,
		Metric:            metric,
		Target:            target,
		LowerTailFraction: s.engine.LowerTailFraction,
		IntervalDays:      req.DosingIntervalDays,
		CoverageDays:      req.CoverageDurationDays,
		Transform:         response.Transform{TiterFloor: s.engine.TiterFloor},
	}
	if err := eval.Validate(); err != nil {
		return nil, err
	}
	return &prepared{eval: eval, spec: effective}, nil
}

func validateRequest(req models.SolveRequest) (models.Metric, float64, error) {
	metric, err := models.ParseMetric(req.Criterion)
	if err != nil {
		return "", 0, err
	}

	for field, v := range map[string]float64{
		"coverage_duration_days": req.CoverageDurationDays,
		"dosing_interval_days":   req.DosingIntervalDays,
		"dose_increment_mg":      req.DoseIncrementMg,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return "", 0, &models.InvalidArgumentError{Field: field, Reason: "must be positive and finite"}
		}
	}
	if req.IC50MgL < 0 || math.IsNaN(req.IC50MgL) || math.IsInf(req.IC50MgL, 0) {
		return "", 0, &models.InvalidArgumentError{Field: "ic50_mg_l", Reason: "override must be positive and finite, or zero to keep the population value"}
	}
	if req.PenaltyWeight < 0 || math.IsNaN(req.PenaltyWeight) || math.IsInf(req.PenaltyWeight, 0) {
		return "", 0, &models.InvalidArgumentError{Field: "penalty_weight", Reason: "must be non-negative and finite, or zero for the engine default"}
	}
	if req.LoadingDoseEnabled {
		if math.IsNaN(req.InitialDoseMg) || math.IsInf(req.InitialDoseMg, 0) || req.InitialDoseMg <= 0 {
			return "", 0, &models.InvalidArgumentError{Field: "initial_dose_mg", Reason: "loading-dose search needs a positive starting dose"}
		}
		if math.IsNaN(req.InitialLoadingDoseMg) || math.IsInf(req.InitialLoadingDoseMg, 0) || req.InitialLoadingDoseMg < 0 {
			return "", 0, &models.InvalidArgumentError{Field: "initial_loading_dose_mg", Reason: "must be non-negative and finite"}
		}
	}

	var target float64
	switch metric {
	case models.MetricConcentration:
		if math.IsNaN(req.IC90TargetMgL) || math.IsInf(req.IC90TargetMgL, 0) || req.IC90TargetMgL <= 0 {
			return "", 0, &models.InvalidArgumentError{Field: "ic90_target_mg_l", Reason: "the PK criterion needs a positive target concentration"}
		}
		target = req.IC90TargetMgL
	case models.MetricEfficacy:
		if math.IsNaN(req.TargetEfficacyPct) || req.TargetEfficacyPct <= 0 || req.TargetEfficacyPct >= 100 {
			return "", 0, &models.InvalidArgumentError{Field: "target_efficacy_pct", Reason: "the PD criterion needs a target in (0, 100)"}
		}
		target = req.TargetEfficacyPct
	}
	return metric, target, nil
}
