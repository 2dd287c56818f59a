package models

import (
	"fmt"
	"strings"
)

// Metric selects the quantity a protection criterion is evaluated on.
type Metric string

const (
	// MetricConcentration targets trough serum concentration in mg/L.
	MetricConcentration Metric = "PK"
	// MetricEfficacy targets trough protective efficacy in percent.
	MetricEfficacy Metric = "PD"
)

// ParseMetric converts a request string into a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(MetricConcentration):
		return MetricConcentration, nil
	case string(MetricEfficacy):
		return MetricEfficacy, nil
	default:
		return "", &InvalidArgumentError{
			Field:  "criterion",
			Reason: fmt.Sprintf("unknown criterion %q (want PK or PD)", s),
		}
	}
}

// ParameterSet holds the pharmacokinetic and pharmacodynamic parameters of
// one simulated individual. Clearances are in L/day, volumes in L, IC50 in
// mg/L; MaxEffect is a fraction in (0.5, 1].
type ParameterSet struct {
	ID                 int     `json:"id" yaml:"id"`
	Clearance          float64 `json:"clearance_l_per_day" yaml:"clearance_l_per_day"`
	CentralVolume      float64 `json:"central_volume_l" yaml:"central_volume_l"`
	IntercompClearance float64 `json:"intercompartmental_clearance_l_per_day" yaml:"intercompartmental_clearance_l_per_day"`
	PeripheralVolume   float64 `json:"peripheral_volume_l" yaml:"peripheral_volume_l"`
	IC50               float64 `json:"ic50_mg_per_l" yaml:"ic50_mg_per_l"`
	MaxEffect          float64 `json:"max_effect" yaml:"max_effect"`
	Slope              float64 `json:"slope" yaml:"slope"`
	HalfMaxTiter       float64 `json:"half_max_titer" yaml:"half_max_titer"`
}

// Variability holds log-scale standard deviations (between-subject
// variability) per parameter. A zero entry fixes that parameter at its
// typical value.
type Variability struct {
	Clearance          float64 `json:"clearance_l_per_day,omitempty" yaml:"clearance_l_per_day,omitempty"`
	CentralVolume      float64 `json:"central_volume_l,omitempty" yaml:"central_volume_l,omitempty"`
	IntercompClearance float64 `json:"intercompartmental_clearance_l_per_day,omitempty" yaml:"intercompartmental_clearance_l_per_day,omitempty"`
	PeripheralVolume   float64 `json:"peripheral_volume_l,omitempty" yaml:"peripheral_volume_l,omitempty"`
	IC50               float64 `json:"ic50_mg_per_l,omitempty" yaml:"ic50_mg_per_l,omitempty"`
	MaxEffect          float64 `json:"max_effect,omitempty" yaml:"max_effect,omitempty"`
	Slope              float64 `json:"slope,omitempty" yaml:"slope,omitempty"`
	HalfMaxTiter       float64 `json:"half_max_titer,omitempty" yaml:"half_max_titer,omitempty"`
}

// Sample is one observation of an individual's drug disposition: compartment
// amounts in mg and the central concentration in mg/L.
type Sample struct {
	TimeDays      float64 `json:"time_days"`
	Central       float64 `json:"central_mg"`
	Peripheral    float64 `json:"peripheral_mg"`
	Concentration float64 `json:"concentration_mg_per_l"`
}

// Trace is the ordered concentration-time course of one individual.
type Trace struct {
	Individual int      `json:"individual"`
	Samples    []Sample `json:"samples"`
}

// CurvePoint is one time point of the projected population percentile band.
type CurvePoint struct {
	TimeDays float64 `json:"time_days"`
	P10      float64 `json:"p10"`
	P50      float64 `json:"p50"`
	P90      float64 `json:"p90"`
}

// SolveRequest describes a dosing question posed to the engine. The
// criterion is "PK" (trough concentration vs IC90TargetMgL) or "PD" (trough
// efficacy vs TargetEfficacyPct). IC50MgL, when positive, overrides the
// population's typical IC50 before sampling.
type SolveRequest struct {
	Criterion            string  `json:"criterion" yaml:"criterion"`
	IC90TargetMgL        float64 `json:"ic90_target_mg_l,omitempty" yaml:"ic90_target_mg_l,omitempty"`
	IC50MgL              float64 `json:"ic50_mg_l,omitempty" yaml:"ic50_mg_l,omitempty"`
	TargetEfficacyPct    float64 `json:"target_efficacy_pct,omitempty" yaml:"target_efficacy_pct,omitempty"`
	LoadingDoseEnabled   bool    `json:"loading_dose_enabled" yaml:"loading_dose_enabled"`
	CoverageDurationDays float64 `json:"coverage_duration_days" yaml:"coverage_duration_days"`
	DosingIntervalDays   float64 `json:"dosing_interval_days" yaml:"dosing_interval_days"`
	DoseIncrementMg      float64 `json:"dose_increment_mg" yaml:"dose_increment_mg"`
	InitialDoseMg        float64 `json:"initial_dose_mg" yaml:"initial_dose_mg"`
	InitialLoadingDoseMg float64 `json:"initial_loading_dose_mg,omitempty" yaml:"initial_loading_dose_mg,omitempty"`
	PenaltyWeight        float64 `json:"penalty_weight,omitempty" yaml:"penalty_weight,omitempty"`
}

// Diagnostics summarizes the numerical work behind a recommendation.
type Diagnostics struct {
	Iterations        int     `json:"iterations"`
	FuncEvaluations   int     `json:"func_evaluations"`
	FinalObjective    float64 `json:"final_objective"`
	CriterionResidual float64 `json:"criterion_residual"`
	Status            string  `json:"status"`
}

// SolveResponse carries the dose recommendation, its provenance, and the
// projected population percentile curve at the recommended regimen.
type SolveResponse struct {
	RecommendedDoseMg        float64      `json:"recommended_dose_mg"`
	RecommendedLoadingDoseMg float64      `json:"recommended_loading_dose_mg"`
	RawDoseMg                float64      `json:"raw_dose_mg"`
	RawLoadingDoseMg         float64      `json:"raw_loading_dose_mg"`
	Converged                bool         `json:"converged"`
	Metric                   Metric       `json:"metric"`
	PopulationSize           int          `json:"population_size"`
	Seed                     uint64       `json:"seed"`
	PopulationFingerprint    string       `json:"population_fingerprint"`
	Diagnostics              Diagnostics  `json:"diagnostics"`
	ProjectedCurve           []CurvePoint `json:"projected_curve"`
}
