package models

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		input   string
		want    Metric
		wantErr bool
	}{
		{"PK", MetricConcentration, false},
		{"PD", MetricEfficacy, false},
		{"pk", MetricConcentration, false},
		{" pd ", MetricEfficacy, false},
		{"", "", true},
		{"EC50", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMetric(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMetric(%q): expected error, got %q", tt.input, got)
				continue
			}
			var invalid *InvalidArgumentError
			if !errors.As(err, &invalid) {
				t.Errorf("ParseMetric(%q): expected InvalidArgumentError, got %T", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMetric(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMetric(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "invalid argument with field",
			err:  &InvalidArgumentError{Field: "n", Reason: "must be at least 1"},
			want: `invalid argument "n"`,
		},
		{
			name: "invalid argument without field",
			err:  &InvalidArgumentError{Reason: "empty request"},
			want: "invalid argument: empty request",
		},
		{
			name: "numerical instability",
			err:  &NumericalInstabilityError{Quantity: "concentration", Individual: 3, TimeDays: 90, Value: -1.5},
			want: "individual 3",
		},
		{
			name: "no root found reports both endpoints",
			err:  &NoRootFoundError{Lower: 0, Upper: 20000, FLower: -40, FUpper: -2},
			want: "f(upper)=-2",
		},
		{
			name: "optimization failed reports budget",
			err:  &OptimizationFailedError{Status: "IterationLimit", Iterations: 500, FuncEvaluations: 900, BestObjective: 4200, CriterionResidual: -0.3},
			want: "500 iterations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := tt.err.Error(); !strings.Contains(msg, tt.want) {
				t.Errorf("Error() = %q, expected it to contain %q", msg, tt.want)
			}
		})
	}
}
