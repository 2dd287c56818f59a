package config

import (
	"fmt"
	"math"
	"os"
)

// LoadPopulationSpec loads and parses a population file
func LoadPopulationSpec(path string) (*PopulationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read population file %s: %w", path, err)
	}
	spec, err := ParsePopulationSpecYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse population file %s: %w", path, err)
	}
	return spec, nil
}

// LoadEngine loads and parses an engine settings file, overlaying defaults
func LoadEngine(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine file %s: %w", path, err)
	}
	eng, err := ParseEngineYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse engine file %s: %w", path, err)
	}
	return eng, nil
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// validatePopulationSpec performs validation on the population document
func validatePopulationSpec(spec *PopulationSpec) error {
	pop := &spec.Population

	if pop.Size < 1 {
		return fmt.Errorf("population size must be at least 1, got %d", pop.Size)
	}

	typical := []struct {
		name  string
		value float64
	}{
		{"clearance_l_per_day", pop.Typical.Clearance},
		{"central_volume_l", pop.Typical.CentralVolume},
		{"intercompartmental_clearance_l_per_day", pop.Typical.IntercompClearance},
		{"peripheral_volume_l", pop.Typical.PeripheralVolume},
		{"ic50_mg_per_l", pop.Typical.IC50},
		{"max_effect", pop.Typical.MaxEffect},
		{"slope", pop.Typical.Slope},
		{"half_max_titer", pop.Typical.HalfMaxTiter},
	}
	for _, f := range typical {
		if !finitePositive(f.value) {
			return fmt.Errorf("typical %s must be positive and finite, got %v", f.name, f.value)
		}
	}

	// The efficacy transform needs 2*max_effect-1 > 0
	if pop.Typical.MaxEffect <= 0.5 || pop.Typical.MaxEffect > 1 {
		return fmt.Errorf("typical max_effect must be in (0.5, 1], got %v", pop.Typical.MaxEffect)
	}

	terms := []struct {
		name  string
		value float64
	}{
		{"clearance_l_per_day", pop.Variability.Clearance},
		{"central_volume_l", pop.Variability.CentralVolume},
		{"intercompartmental_clearance_l_per_day", pop.Variability.IntercompClearance},
		{"peripheral_volume_l", pop.Variability.PeripheralVolume},
		{"ic50_mg_per_l", pop.Variability.IC50},
		{"max_effect", pop.Variability.MaxEffect},
		{"slope", pop.Variability.Slope},
		{"half_max_titer", pop.Variability.HalfMaxTiter},
	}
	for _, f := range terms {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return fmt.Errorf("variability %s must be non-negative and finite, got %v", f.name, f.value)
		}
	}

	return nil
}

// validateEngine performs validation on the engine settings
func validateEngine(e *Engine) error {
	if e.LowerTailFraction < 0 || e.LowerTailFraction > 1 {
		return fmt.Errorf("lower_tail_fraction must be between 0 and 1, got %v", e.LowerTailFraction)
	}
	if !finitePositive(e.RootBracketMaxMg) {
		return fmt.Errorf("root_bracket_max_mg must be positive, got %v", e.RootBracketMaxMg)
	}
	if !finitePositive(e.RelTolerance) {
		return fmt.Errorf("rel_tolerance must be positive, got %v", e.RelTolerance)
	}
	if !finitePositive(e.DoseMinMg) {
		return fmt.Errorf("dose_min_mg must be positive, got %v", e.DoseMinMg)
	}
	if e.DoseMaxMg <= e.DoseMinMg {
		return fmt.Errorf("dose_max_mg must exceed dose_min_mg, got %v <= %v", e.DoseMaxMg, e.DoseMinMg)
	}
	if e.PenaltyWeight < 0 {
		return fmt.Errorf("penalty_weight cannot be negative, got %v", e.PenaltyWeight)
	}
	if e.RepeatedMassWeight < 0 {
		return fmt.Errorf("repeated_mass_weight cannot be negative, got %v", e.RepeatedMassWeight)
	}
	if e.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", e.MaxIterations)
	}
	if e.MaxEvaluations <= 0 {
		return fmt.Errorf("max_evaluations must be positive, got %d", e.MaxEvaluations)
	}
	if e.MaxRuntimeSeconds < 0 {
		return fmt.Errorf("max_runtime_seconds cannot be negative, got %d", e.MaxRuntimeSeconds)
	}
	if !finitePositive(e.CurveStepDays) {
		return fmt.Errorf("curve_step_days must be positive, got %v", e.CurveStepDays)
	}
	if !finitePositive(e.TiterFloor) {
		return fmt.Errorf("titer_floor must be positive, got %v", e.TiterFloor)
	}
	if e.MaxParallel <= 0 {
		return fmt.Errorf("max_parallel must be positive, got %d", e.MaxParallel)
	}
	return nil
}
