package criterion

import (
	"errors"
	"math"
	"testing"

	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

func TestMarginSingleTrough(t *testing.T) {
	values := [][]float64{{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}

	// The 0.10 quantile of 1..10 interpolates to 1.9.
	margin, err := Margin(values, 0.10, 1.9)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	if math.Abs(margin) > 1e-12 {
		t.Errorf("expected zero margin, got %v", margin)
	}

	margin, err = Margin(values, 0.10, 5)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	if math.Abs(margin-(-3.1)) > 1e-12 {
		t.Errorf("expected margin -3.1, got %v", margin)
	}
}

func TestMarginWorstTrough(t *testing.T) {
	values := [][]float64{
		{11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
		{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}

	// The second trough has the lower quantile, so it drives the margin.
	margin, err := Margin(values, 0.10, 1)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	if math.Abs(margin-0.9) > 1e-12 {
		t.Errorf("expected margin 0.9, got %v", margin)
	}
}

func TestMarginOrderInsensitive(t *testing.T) {
	sorted := [][]float64{{1, 2, 3, 4, 5}}
	shuffled := [][]float64{{4, 1, 5, 2, 3}}

	a, err := Margin(sorted, 0.25, 0)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	b, err := Margin(shuffled, 0.25, 0)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	if a != b {
		t.Errorf("margin depends on input order: %v vs %v", a, b)
	}
}

func TestMarginBoundaryFractions(t *testing.T) {
	values := [][]float64{{3, 1, 2}}

	margin, err := Margin(values, 0, 0)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	if margin != 1 {
		t.Errorf("fraction 0 should give the minimum, got %v", margin)
	}

	margin, err = Margin(values, 1, 0)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	if margin != 3 {
		t.Errorf("fraction 1 should give the maximum, got %v", margin)
	}
}

func TestMarginInvalid(t *testing.T) {
	valid := [][]float64{{1, 2, 3}}

	tests := []struct {
		name     string
		values   [][]float64
		fraction float64
		target   float64
	}{
		{"no troughs", nil, 0.1, 0},
		{"empty trough", [][]float64{{}}, 0.1, 0},
		{"ragged rows", [][]float64{{1, 2, 3}, {1, 2}}, 0.1, 0},
		{"NaN value", [][]float64{{1, math.NaN(), 3}}, 0.1, 0},
		{"infinite value", [][]float64{{1, math.Inf(1), 3}}, 0.1, 0},
		{"fraction below zero", valid, -0.1, 0},
		{"fraction above one", valid, 1.1, 0},
		{"NaN fraction", valid, math.NaN(), 0},
		{"NaN target", valid, 0.1, math.NaN()},
		{"infinite target", valid, 0.1, math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Margin(tt.values, tt.fraction, tt.target)
			if err == nil {
				t.Fatal("expected error")
			}
			var invalid *models.InvalidArgumentError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidArgumentError, got %T", err)
			}
		})
	}
}

func TestMarginDoesNotMutateInput(t *testing.T) {
	row := []float64{5, 1, 4, 2, 3}
	_, err := Margin([][]float64{row}, 0.5, 0)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	want := []float64{5, 1, 4, 2, 3}
	for i := range row {
		if row[i] != want[i] {
			t.Fatalf("input row mutated: %v", row)
		}
	}
}
