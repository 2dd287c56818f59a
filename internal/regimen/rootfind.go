package regimen

import (
	"math"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// machEps is the double-precision machine epsilon used in the convergence
// test of the root search.
const machEps = 2.220446049250313e-16

// Default search settings applied when a RootFinder field is left zero.
const (
	DefaultRelTolerance  = 1e-4
	DefaultMaxIterations = 200
)

// RootStats counts the numerical work of a root search.
type RootStats struct {
	Iterations      int
	FuncEvaluations int
}

// RootFinder locates a zero of a scalar function on a bracketing interval
// with Brent's method, combining bisection, secant steps and inverse
// quadratic interpolation.
type RootFinder struct {
	Lower         float64
	Upper         float64
	RelTolerance  float64
	MaxIterations int
}

// Solve runs Brent's method on f over [Lower, Upper]. The bracket must
// carry a sign change; otherwise a NoRootFoundError reports both endpoint
// values so the caller can widen the bracket. Errors returned by f abort
// the search immediately.
//
// When the iteration budget runs out the best bracket endpoint is returned
// together with an OptimizationFailedError carrying the residual there.
func (r RootFinder) Solve(f func(float64) (float64, error)) (float64, RootStats, error) {
	rel := r.RelTolerance
	if rel <= 0 {
		rel = DefaultRelTolerance
	}
	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	if math.IsNaN(r.Lower) || math.IsInf(r.Lower, 0) || math.IsNaN(r.Upper) || math.IsInf(r.Upper, 0) || r.Lower >= r.Upper {
		return 0, RootStats{}, &models.InvalidArgumentError{
			Field:  "bracket",
			Reason: "bracket must be a finite interval with lower < upper",
		}
	}

	var stats RootStats

	a, b := r.Lower, r.Upper
	fa, err := f(a)
	stats.FuncEvaluations++
	if err != nil {
		return 0, stats, err
	}
	fb, err := f(b)
	stats.FuncEvaluations++
	if err != nil {
		return 0, stats, err
	}

	if (fa > 0 && fb > 0) || (fa < 0 && fb < 0) {
		return 0, stats, &models.NoRootFoundError{Lower: a, Upper: b, FLower: fa, FUpper: fb}
	}

	c, fc := b, fb
	var d, e float64
	for i := 0; i < maxIter; i++ {
		stats.Iterations++
		if (fb > 0 && fc > 0) || (fb < 0 && fc < 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*machEps*math.Abs(b) + 0.5*rel*math.Max(1, math.Abs(b))
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, stats, nil
		}
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// Inverse quadratic interpolation, or a secant step when only
			// two points are distinct.
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				t := fb / fc
				p = s * (2*xm*q*(q-t) - (b-a)*(t-1))
				q = (q - 1) * (t - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			min1 := 3*xm*q - math.Abs(tol1*q)
			min2 := math.Abs(e * q)
			if 2*p < math.Min(min1, min2) {
				e = d
				d = p / q
			} else {
				// Interpolation would leave the bracket or shrink too
				// slowly; bisect instead.
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb, err = f(b)
		stats.FuncEvaluations++
		if err != nil {
			return 0, stats, err
		}
	}

	return b, stats, &models.OptimizationFailedError{
		Status:            "IterationLimit",
		Iterations:        stats.Iterations,
		FuncEvaluations:   stats.FuncEvaluations,
		BestObjective:     math.Abs(fb),
		CriterionResidual: fb,
	}
}
