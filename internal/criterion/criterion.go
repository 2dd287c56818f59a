// Package criterion scores a regimen's population troughs against a
// protection target.
package criterion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
	"github.com/ryantjarrett/CTSI-2024/pkg/utils"
)

// Margin scores the worst trough of a population against a target. Each row
// of values holds the population's metric at one trough instant. Per trough
// the lower-tail quantile summarizes the population; the minimum of those
// quantiles across troughs is compared to the target. The signed difference
// comes back: zero or positive means the criterion is met.
func Margin(values [][]float64, lowerTailFraction, target float64) (float64, error) {
	if len(values) == 0 {
		return 0, &models.InvalidArgumentError{
			Field:  "values",
			Reason: "at least one trough is required",
		}
	}
	if math.IsNaN(lowerTailFraction) || lowerTailFraction < 0 || lowerTailFraction > 1 {
		return 0, &models.InvalidArgumentError{
			Field:  "lower_tail_fraction",
			Reason: fmt.Sprintf("must be in [0, 1], got %v", lowerTailFraction),
		}
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return 0, &models.InvalidArgumentError{
			Field:  "target",
			Reason: fmt.Sprintf("must be finite, got %v", target),
		}
	}

	size := len(values[0])
	quantiles := make([]float64, len(values))
	for i, row := range values {
		if len(row) == 0 {
			return 0, &models.InvalidArgumentError{
				Field:  "values",
				Reason: fmt.Sprintf("trough %d has no population values", i),
			}
		}
		if len(row) != size {
			return 0, &models.InvalidArgumentError{
				Field:  "values",
				Reason: fmt.Sprintf("trough %d has %d values, trough 0 has %d", i, len(row), size),
			}
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, &models.InvalidArgumentError{
					Field:  "values",
					Reason: fmt.Sprintf("trough %d, individual %d: value must be finite, got %v", i, j, v),
				}
			}
		}
		quantiles[i] = utils.Quantile(row, lowerTailFraction)
	}

	return floats.Min(quantiles) - target, nil
}
