//go:build integration
// +build integration

package integration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
	"github.com/ryantjarrett/CTSI-2024/pkg/config"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

func TestIntegration_ConfigFilesLoadSmoke(t *testing.T) {
	popPath := filepath.Join("..", "..", "config", "population.yaml")
	enginePath := filepath.Join("..", "..", "config", "engine.yaml")

	spec, err := config.LoadPopulationSpec(popPath)
	if err != nil {
		t.Fatalf("LoadPopulationSpec(%s) failed: %v", popPath, err)
	}
	if spec.Population.Size != 50 {
		t.Errorf("population size = %d, want 50", spec.Population.Size)
	}
	if spec.Population.Seed != 20240601 {
		t.Errorf("seed = %d, want 20240601", spec.Population.Seed)
	}
	if spec.Population.Typical.Clearance != 0.05 {
		t.Errorf("typical clearance = %g, want 0.05", spec.Population.Typical.Clearance)
	}
	if spec.Population.Variability.Clearance != 0.25 {
		t.Errorf("clearance variability = %g, want 0.25", spec.Population.Variability.Clearance)
	}
	if spec.Population.Variability.IC50 != 0 {
		t.Errorf("IC50 variability = %g, want 0 (fixed at typical)", spec.Population.Variability.IC50)
	}

	engine, err := config.LoadEngine(enginePath)
	if err != nil {
		t.Fatalf("LoadEngine(%s) failed: %v", enginePath, err)
	}
	if engine.CurveStepDays != 0.5 {
		t.Errorf("curve step = %g, want 0.5", engine.CurveStepDays)
	}
	if engine.MaxParallel != 8 {
		t.Errorf("max parallel = %d, want 8", engine.MaxParallel)
	}
	// Fields the file omits keep their built-in defaults.
	defaults := config.DefaultEngine()
	if engine.RootBracketMaxMg != defaults.RootBracketMaxMg {
		t.Errorf("root bracket = %g, want default %g", engine.RootBracketMaxMg, defaults.RootBracketMaxMg)
	}
	if engine.PenaltyWeight != defaults.PenaltyWeight {
		t.Errorf("penalty weight = %g, want default %g", engine.PenaltyWeight, defaults.PenaltyWeight)
	}
}

func TestIntegration_SolveWithShippedConfig(t *testing.T) {
	spec, err := config.LoadPopulationSpec(filepath.Join("..", "..", "config", "population.yaml"))
	if err != nil {
		t.Fatalf("LoadPopulationSpec failed: %v", err)
	}
	engine, err := config.LoadEngine(filepath.Join("..", "..", "config", "engine.yaml"))
	if err != nil {
		t.Fatalf("LoadEngine failed: %v", err)
	}

	solver := regimen.NewSolver(*engine)
	req := models.SolveRequest{
		Criterion:            "PK",
		IC90TargetMgL:        40,
		CoverageDurationDays: 365,
		DosingIntervalDays:   180,
		DoseIncrementMg:      50,
		InitialDoseMg:        1000,
	}

	resp, err := solver.Solve(context.Background(), req, spec)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !resp.Converged {
		t.Fatalf("solve did not converge: %+v", resp.Diagnostics)
	}
	if resp.RawDoseMg <= 1000 || resp.RawDoseMg >= 8000 {
		t.Errorf("raw dose = %g mg, outside the plausible band", resp.RawDoseMg)
	}
	if resp.PopulationFingerprint == "" {
		t.Error("missing population fingerprint")
	}

	// 0.5-day steps over 365 days of coverage.
	if len(resp.ProjectedCurve) != 731 {
		t.Errorf("curve has %d points, want 731", len(resp.ProjectedCurve))
	}
	for _, point := range resp.ProjectedCurve {
		if point.P10 > point.P50 || point.P50 > point.P90 {
			t.Fatalf("percentiles out of order at t=%g: %+v", point.TimeDays, point)
		}
	}
}
