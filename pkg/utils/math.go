package utils

import (
	"math"
	"sort"
)

// Mean calculates the mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance calculates the variance of a slice of float64 values
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Quantile estimates the fraction-quantile of a slice of float64 values by
// linear interpolation between order statistics. fraction should be between
// 0 and 1; it is clamped otherwise. Returns 0 for an empty slice.
func Quantile(values []float64, fraction float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	// Create a copy and sort it
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	// Fractional index into the order statistics
	index := fraction * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	// Linear interpolation between lower and upper
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// CeilToIncrement rounds value up to the next multiple of increment. A small
// relative tolerance keeps exact multiples from picking up an extra step.
// Non-positive increments leave the value unchanged; callers validate them.
func CeilToIncrement(value, increment float64) float64 {
	if increment <= 0 {
		return value
	}
	steps := math.Ceil(value/increment - 1e-12)
	if steps < 0 {
		steps = 0
	}
	return steps * increment
}
