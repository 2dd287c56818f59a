package dosed

import (
	"errors"
	"testing"

	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

func solveInput() JobInput {
	return JobInput{
		Kind: JobKindSolve,
		Request: models.SolveRequest{
			Criterion:            "PK",
			IC90TargetMgL:        30,
			CoverageDurationDays: 365,
			DosingIntervalDays:   180,
			DoseIncrementMg:      50,
			InitialDoseMg:        1000,
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	store := NewJobStore()

	rec := store.Create(solveInput())
	if rec.ID == "" {
		t.Fatal("expected a generated job ID")
	}
	if rec.Status != JobStatusPending {
		t.Fatalf("new job status = %s, want %s", rec.Status, JobStatusPending)
	}
	if rec.CreatedAtUnixMs == 0 {
		t.Error("expected a creation timestamp")
	}

	got, ok := store.Get(rec.ID)
	if !ok {
		t.Fatal("job not found after create")
	}
	if got.ID != rec.ID || got.Kind != JobKindSolve {
		t.Errorf("got job %s kind %s, want %s kind %s", got.ID, got.Kind, rec.ID, JobKindSolve)
	}
}

func TestGetMissing(t *testing.T) {
	store := NewJobStore()
	if _, ok := store.Get("nope"); ok {
		t.Fatal("expected missing job")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewJobStore()
	rec := store.Create(solveInput())

	got, _ := store.Get(rec.ID)
	got.Status = JobStatusFailed
	got.Error = "mutated"

	fresh, _ := store.Get(rec.ID)
	if fresh.Status != JobStatusPending || fresh.Error != "" {
		t.Fatalf("store record changed through a returned copy: %s %q", fresh.Status, fresh.Error)
	}
}

func TestStatusTransitions(t *testing.T) {
	store := NewJobStore()
	rec := store.Create(solveInput())

	running, err := store.SetStatus(rec.ID, JobStatusRunning, "")
	if err != nil {
		t.Fatalf("SetStatus(RUNNING) failed: %v", err)
	}
	if running.StartedAtUnixMs == 0 {
		t.Error("expected a start timestamp")
	}
	if running.EndedAtUnixMs != 0 {
		t.Error("running job should have no end timestamp")
	}

	done, err := store.SetStatus(rec.ID, JobStatusSucceeded, "")
	if err != nil {
		t.Fatalf("SetStatus(SUCCEEDED) failed: %v", err)
	}
	if done.EndedAtUnixMs == 0 {
		t.Error("expected an end timestamp")
	}

	if _, err := store.SetStatus(rec.ID, JobStatusRunning, ""); !errors.Is(err, ErrJobTerminal) {
		t.Fatalf("transition out of terminal state: err = %v, want ErrJobTerminal", err)
	}
}

func TestSetStatusMissing(t *testing.T) {
	store := NewJobStore()
	if _, err := store.SetStatus("nope", JobStatusRunning, ""); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestSetStatusRecordsError(t *testing.T) {
	store := NewJobStore()
	rec := store.Create(solveInput())

	failed, err := store.SetStatus(rec.ID, JobStatusFailed, "bracket carries no sign change")
	if err != nil {
		t.Fatalf("SetStatus(FAILED) failed: %v", err)
	}
	if failed.Error != "bracket carries no sign change" {
		t.Errorf("error message = %q", failed.Error)
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusPending:   false,
		JobStatusRunning:   false,
		JobStatusSucceeded: true,
		JobStatusFailed:    true,
		JobStatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestParseJobKind(t *testing.T) {
	if kind, err := ParseJobKind("solve"); err != nil || kind != JobKindSolve {
		t.Errorf("ParseJobKind(solve) = %v, %v", kind, err)
	}
	if kind, err := ParseJobKind("surface"); err != nil || kind != JobKindSurface {
		t.Errorf("ParseJobKind(surface) = %v, %v", kind, err)
	}
	if _, err := ParseJobKind("render"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestSetProgress(t *testing.T) {
	store := NewJobStore()
	rec := store.Create(solveInput())

	if err := store.SetProgress(rec.ID, 12, 2047.5); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	got, _ := store.Get(rec.ID)
	if got.Progress.Iteration != 12 || got.Progress.BestObjective != 2047.5 {
		t.Errorf("progress = %+v", got.Progress)
	}

	if err := store.SetProgress("nope", 1, 0); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestSetResults(t *testing.T) {
	store := NewJobStore()
	rec := store.Create(solveInput())

	resp := &models.SolveResponse{RecommendedDoseMg: 1500, Converged: true}
	if err := store.SetSolveResult(rec.ID, resp); err != nil {
		t.Fatalf("SetSolveResult failed: %v", err)
	}
	got, _ := store.Get(rec.ID)
	if got.Result == nil || got.Result.RecommendedDoseMg != 1500 {
		t.Fatalf("result = %+v", got.Result)
	}

	points := []regimen.SurfacePoint{{RepeatedDoseMg: 500, LoadingDoseMg: 0, Margin: -2}}
	if err := store.SetSurfaceResult(rec.ID, points); err != nil {
		t.Fatalf("SetSurfaceResult failed: %v", err)
	}
	got, _ = store.Get(rec.ID)
	if len(got.Surface) != 1 || got.Surface[0].RepeatedDoseMg != 500 {
		t.Fatalf("surface = %+v", got.Surface)
	}

	if err := store.SetSolveResult("nope", resp); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
	if err := store.SetSurfaceResult("nope", points); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestListFiltersAndLimits(t *testing.T) {
	store := NewJobStore()

	store.Create(solveInput())
	second := store.Create(solveInput())
	store.Create(solveInput())

	if _, err := store.SetStatus(second.ID, JobStatusRunning, ""); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	all := store.List("", 0)
	if len(all) != 3 {
		t.Fatalf("List returned %d jobs, want 3", len(all))
	}

	pending := store.List(JobStatusPending, 0)
	if len(pending) != 2 {
		t.Fatalf("List(PENDING) returned %d jobs, want 2", len(pending))
	}
	for _, rec := range pending {
		if rec.ID == second.ID {
			t.Error("running job leaked into PENDING filter")
		}
	}

	capped := store.List("", 2)
	if len(capped) != 2 {
		t.Fatalf("List with limit returned %d jobs, want 2", len(capped))
	}
}

func TestListNewestFirst(t *testing.T) {
	store := NewJobStore()
	for i := 0; i < 5; i++ {
		store.Create(solveInput())
	}

	jobs := store.List("", 0)
	for i := 1; i < len(jobs); i++ {
		if jobs[i-1].CreatedAtUnixMs < jobs[i].CreatedAtUnixMs {
			t.Fatalf("jobs out of order at %d: %d before %d",
				i, jobs[i-1].CreatedAtUnixMs, jobs[i].CreatedAtUnixMs)
		}
	}
}
