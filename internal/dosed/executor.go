package dosed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
	"github.com/ryantjarrett/CTSI-2024/pkg/config"
	"github.com/ryantjarrett/CTSI-2024/pkg/logger"
)

// ErrJobIDMissing is returned when an operation is called without a job ID.
var ErrJobIDMissing = errors.New("job id is required")

// JobExecutor runs jobs asynchronously with per-job cancellation. Solves and
// surface evaluations execute on their own goroutines; the store is the only
// channel back to readers.
type JobExecutor struct {
	store       *JobStore
	solver      *regimen.Solver
	defaultSpec *config.PopulationSpec
	notifier    *Notifier
	metrics     *Metrics

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewJobExecutor wires an executor to its store and solver. A nil notifier
// or metrics gets a fresh default, so callers only pass what they share.
func NewJobExecutor(store *JobStore, solver *regimen.Solver, defaultSpec *config.PopulationSpec, notifier *Notifier, metrics *Metrics) *JobExecutor {
	if notifier == nil {
		notifier = NewNotifier()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if defaultSpec == nil {
		defaultSpec = config.DefaultPopulationSpec()
	}
	return &JobExecutor{
		store:       store,
		solver:      solver,
		defaultSpec: defaultSpec,
		notifier:    notifier,
		metrics:     metrics,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Start begins executing a pending job on its own goroutine. Starting a job
// that is already running is a no-op; starting a finished one is an error.
func (e *JobExecutor) Start(jobID string) (JobRecord, error) {
	if jobID == "" {
		return JobRecord{}, ErrJobIDMissing
	}
	rec, ok := e.store.Get(jobID)
	if !ok {
		return JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if rec.Status == JobStatusRunning {
		return rec, nil
	}
	if rec.Status.Terminal() {
		return JobRecord{}, fmt.Errorf("%w: %s is %s", ErrJobTerminal, jobID, rec.Status)
	}

	updated, err := e.store.SetStatus(jobID, JobStatusRunning, "")
	if err != nil {
		return JobRecord{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[jobID] = cancel
	e.mu.Unlock()

	e.metrics.JobsActive.Inc()
	go e.run(ctx, jobID)
	return updated, nil
}

// Cancel stops a pending or running job. The running goroutine observes the
// cancelled context at its next objective evaluation and exits; the record
// flips to CANCELLED immediately.
func (e *JobExecutor) Cancel(jobID string) (JobRecord, error) {
	if jobID == "" {
		return JobRecord{}, ErrJobIDMissing
	}
	rec, ok := e.store.Get(jobID)
	if !ok {
		return JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if rec.Status.Terminal() {
		return JobRecord{}, fmt.Errorf("%w: %s is %s", ErrJobTerminal, jobID, rec.Status)
	}

	e.mu.Lock()
	cancel, ok := e.cancels[jobID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	updated, err := e.finish(jobID, JobStatusCancelled, "")
	if err != nil {
		return JobRecord{}, err
	}
	logger.Info("job cancelled", "job_id", jobID)
	return updated, nil
}

// run executes one job to a terminal state.
func (e *JobExecutor) run(ctx context.Context, jobID string) {
	defer e.cleanup(jobID)

	rec, ok := e.store.Get(jobID)
	if !ok {
		logger.Error("job disappeared before execution", "job_id", jobID)
		return
	}
	logger.Info("job started", "job_id", jobID, "kind", rec.Kind)

	spec := e.defaultSpec
	if rec.Input.PopulationYAML != "" {
		parsed, err := config.ParsePopulationSpecYAMLString(rec.Input.PopulationYAML)
		if err != nil {
			e.fail(jobID, fmt.Errorf("invalid population spec: %w", err))
			return
		}
		spec = parsed
	}

	switch rec.Kind {
	case JobKindSolve:
		e.runSolve(ctx, jobID, rec, spec)
	case JobKindSurface:
		e.runSurface(ctx, jobID, rec, spec)
	default:
		e.fail(jobID, fmt.Errorf("unknown job kind %q", rec.Kind))
	}
}

func (e *JobExecutor) runSolve(ctx context.Context, jobID string, rec JobRecord, spec *config.PopulationSpec) {
	progress := func(iteration int, bestObjective float64) {
		if err := e.store.SetProgress(jobID, iteration, bestObjective); err != nil {
			logger.Debug("dropping progress update", "job_id", jobID, "error", err)
		}
	}

	resp, err := e.solver.SolveWithProgress(ctx, rec.Input.Request, spec, progress)
	if resp != nil {
		// A best-effort iterate survives budget exhaustion; keep it
		// visible whatever status the job ends in.
		if serr := e.store.SetSolveResult(jobID, resp); serr != nil {
			logger.Error("failed to store solve result", "job_id", jobID, "error", serr)
		}
	}

	switch {
	case err == nil:
		e.succeed(jobID)
	case errors.Is(err, context.Canceled):
		e.finish(jobID, JobStatusCancelled, "")
	default:
		e.fail(jobID, err)
	}
}

func (e *JobExecutor) runSurface(ctx context.Context, jobID string, rec JobRecord, spec *config.PopulationSpec) {
	if rec.Input.Surface == nil {
		e.fail(jobID, errors.New("surface job needs a dose grid"))
		return
	}

	points, err := e.solver.Surface(ctx, rec.Input.Request, spec, rec.Input.Surface.Repeated, rec.Input.Surface.Loading)
	switch {
	case err == nil:
		if serr := e.store.SetSurfaceResult(jobID, points); serr != nil {
			logger.Error("failed to store surface result", "job_id", jobID, "error", serr)
		}
		e.succeed(jobID)
	case errors.Is(err, context.Canceled):
		e.finish(jobID, JobStatusCancelled, "")
	default:
		e.fail(jobID, err)
	}
}

func (e *JobExecutor) succeed(jobID string) {
	if rec, err := e.finish(jobID, JobStatusSucceeded, ""); err == nil {
		logger.Info("job succeeded", "job_id", jobID, "kind", rec.Kind)
	}
}

func (e *JobExecutor) fail(jobID string, cause error) {
	if _, err := e.finish(jobID, JobStatusFailed, cause.Error()); err == nil {
		logger.Warn("job failed", "job_id", jobID, "error", cause)
	}
}

// finish transitions a job to a terminal status exactly once; the loser of a
// cancel-versus-completion race gets ErrJobTerminal and backs off. The winner
// records metrics and fires the callback.
func (e *JobExecutor) finish(jobID string, status JobStatus, errMsg string) (JobRecord, error) {
	rec, err := e.store.SetStatus(jobID, status, errMsg)
	if err != nil {
		if !errors.Is(err, ErrJobTerminal) {
			logger.Error("failed to finish job", "job_id", jobID, "error", err)
		}
		return JobRecord{}, err
	}

	started := rec.StartedAtUnixMs
	if started == 0 {
		started = rec.CreatedAtUnixMs
	}
	e.metrics.ObserveJob(rec.Kind, rec.Status, time.Duration(rec.EndedAtUnixMs-started)*time.Millisecond)
	e.notifier.Notify(rec)
	return rec, nil
}

func (e *JobExecutor) cleanup(jobID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[jobID]; ok {
		cancel()
		delete(e.cancels, jobID)
	}
	e.mu.Unlock()
	e.metrics.JobsActive.Dec()
}
