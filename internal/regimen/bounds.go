// Package regimen turns a population, a target and a schedule shape into a
// dose recommendation: a bracketing root search when only the repeated dose
// is free, and a penalized mass minimization when a loading dose is allowed.
package regimen

import (
	"fmt"
	"math"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// BoundTransform maps the real line onto an open interval through a
// logistic bijection, so an unconstrained minimizer can respect box
// constraints without projections.
type BoundTransform struct {
	Min float64
	Max float64
}

// Validate checks the interval is finite and non-degenerate.
func (b BoundTransform) Validate() error {
	if math.IsNaN(b.Min) || math.IsInf(b.Min, 0) || math.IsNaN(b.Max) || math.IsInf(b.Max, 0) {
		return &models.InvalidArgumentError{
			Field:  "bounds",
			Reason: fmt.Sprintf("bounds must be finite, got [%v, %v]", b.Min, b.Max),
		}
	}
	if b.Min >= b.Max {
		return &models.InvalidArgumentError{
			Field:  "bounds",
			Reason: fmt.Sprintf("lower bound must be below upper, got [%v, %v]", b.Min, b.Max),
		}
	}
	return nil
}

// Apply maps an unconstrained coordinate into (Min, Max).
func (b BoundTransform) Apply(u float64) float64 {
	return b.Min + (b.Max-b.Min)/(1+math.Exp(-u))
}

// Invert maps a value in (Min, Max) back onto the real line. Values at or
// beyond the bounds are nudged inside first, since the endpoints map to
// infinities.
func (b BoundTransform) Invert(x float64) float64 {
	span := b.Max - b.Min
	eps := span * 1e-9
	if x < b.Min+eps {
		x = b.Min + eps
	}
	if x > b.Max-eps {
		x = b.Max - eps
	}
	fraction := (x - b.Min) / span
	return math.Log(fraction / (1 - fraction))
}
