package config

import "time"

// Engine holds the numerical settings of the dosing engine. Every field has
// a working default; a YAML file overlays only the fields it names.
type Engine struct {
	// LowerTailFraction is the population quantile the criterion protects
	// (0.10 means the 10th percentile individual must clear the target).
	LowerTailFraction float64 `yaml:"lower_tail_fraction" json:"lower_tail_fraction"`

	// RootBracketMaxMg is the upper end of the dose bracket searched when
	// no loading dose is requested. The lower end is zero.
	RootBracketMaxMg float64 `yaml:"root_bracket_max_mg" json:"root_bracket_max_mg"`

	// RelTolerance is the relative tolerance on the dose root.
	RelTolerance float64 `yaml:"rel_tolerance" json:"rel_tolerance"`

	// DoseMinMg and DoseMaxMg bound both decision variables of the
	// loading-dose optimizer.
	DoseMinMg float64 `yaml:"dose_min_mg" json:"dose_min_mg"`
	DoseMaxMg float64 `yaml:"dose_max_mg" json:"dose_max_mg"`

	// PenaltyWeight scales the squared criterion shortfall in the
	// loading-dose objective.
	PenaltyWeight float64 `yaml:"penalty_weight" json:"penalty_weight"`

	// RepeatedMassWeight scales the repeated-dose mass term relative to
	// the loading-dose mass.
	RepeatedMassWeight float64 `yaml:"repeated_mass_weight" json:"repeated_mass_weight"`

	// Optimizer budgets. MaxRuntimeSeconds of zero means no runtime limit.
	MaxIterations     int `yaml:"max_iterations" json:"max_iterations"`
	MaxEvaluations    int `yaml:"max_evaluations" json:"max_evaluations"`
	MaxRuntimeSeconds int `yaml:"max_runtime_seconds" json:"max_runtime_seconds"`

	// CurveStepDays is the sampling step of the projected percentile curve.
	CurveStepDays float64 `yaml:"curve_step_days" json:"curve_step_days"`

	// TiterFloor replaces non-positive scaled titers before the log is
	// taken in the efficacy transform.
	TiterFloor float64 `yaml:"titer_floor" json:"titer_floor"`

	// MaxParallel caps concurrent individuals in surface evaluation.
	MaxParallel int `yaml:"max_parallel" json:"max_parallel"`
}

// DefaultEngine returns the engine defaults.
func DefaultEngine() Engine {
	return Engine{
		LowerTailFraction:  0.10,
		RootBracketMaxMg:   20000,
		RelTolerance:       1e-4,
		DoseMinMg:          1,
		DoseMaxMg:          20000,
		PenaltyWeight:      1e4,
		RepeatedMassWeight: 1,
		MaxIterations:      500,
		MaxEvaluations:     2000,
		MaxRuntimeSeconds:  0,
		CurveStepDays:      1,
		TiterFloor:         1e-12,
		MaxParallel:        4,
	}
}

// MaxRuntime converts the runtime budget to a duration. Zero means no limit.
func (e Engine) MaxRuntime() time.Duration {
	return time.Duration(e.MaxRuntimeSeconds) * time.Second
}
