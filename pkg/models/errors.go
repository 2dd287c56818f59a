package models

import "fmt"

// InvalidArgumentError reports a request or parameter that failed validation
// before any numerical work started.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid argument: %s", e.Reason)
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// NumericalInstabilityError reports a negative or non-finite value produced
// during simulation. The offending value is surfaced, never clamped.
type NumericalInstabilityError struct {
	Quantity   string
	Individual int
	TimeDays   float64
	Value      float64
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("numerical instability: %s = %g for individual %d at t=%g days",
		e.Quantity, e.Value, e.Individual, e.TimeDays)
}

// DomainError reports an input outside the mathematical domain of a
// transform.
type DomainError struct {
	Quantity string
	Value    float64
	Reason   string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error: %s = %g: %s", e.Quantity, e.Value, e.Reason)
}

// NoRootFoundError reports a root-finder bracket that carries no sign
// change. Both endpoints and their objective values are included so callers
// can widen or shift the bracket.
type NoRootFoundError struct {
	Lower  float64
	Upper  float64
	FLower float64
	FUpper float64
}

func (e *NoRootFoundError) Error() string {
	return fmt.Sprintf("no root in bracket [%g, %g]: f(lower)=%g, f(upper)=%g",
		e.Lower, e.Upper, e.FLower, e.FUpper)
}

// OptimizationFailedError reports an optimizer that exhausted its budget
// before converging. The best iterate found is returned alongside the error,
// never discarded.
type OptimizationFailedError struct {
	Status            string
	Iterations        int
	FuncEvaluations   int
	BestObjective     float64
	CriterionResidual float64
}

func (e *OptimizationFailedError) Error() string {
	return fmt.Sprintf("optimization failed (%s) after %d iterations, %d evaluations: best objective %g, criterion residual %g",
		e.Status, e.Iterations, e.FuncEvaluations, e.BestObjective, e.CriterionResidual)
}
