package dosed

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// Sentinel errors shared by the store, the executor and the HTTP layer.
var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobTerminal = errors.New("job already finished")
)

// JobKind selects what a job computes.
type JobKind string

const (
	JobKindSolve   JobKind = "solve"
	JobKindSurface JobKind = "surface"
)

// ParseJobKind converts a request string into a JobKind.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case JobKindSolve:
		return JobKindSolve, nil
	case JobKindSurface:
		return JobKindSurface, nil
	}
	return "", fmt.Errorf("unknown job kind %q (want %q or %q)", s, JobKindSolve, JobKindSurface)
}

// JobStatus is the lifecycle state of a job. Transitions run
// PENDING -> RUNNING -> one of the terminal states; CANCELLED may also be
// reached straight from PENDING.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// SurfaceSpec is the dose grid of a surface job.
type SurfaceSpec struct {
	Repeated regimen.Axis `json:"repeated" yaml:"repeated"`
	Loading  regimen.Axis `json:"loading" yaml:"loading"`
}

// JobInput is everything needed to execute a job. The callback secret is
// held for the notifier but never serialized back out.
type JobInput struct {
	Kind           JobKind             `json:"kind"`
	Request        models.SolveRequest `json:"request"`
	PopulationYAML string              `json:"population_yaml,omitempty"`
	Surface        *SurfaceSpec        `json:"surface,omitempty"`
	CallbackURL    string              `json:"callback_url,omitempty"`
	CallbackSecret string              `json:"-"`
}

// JobProgress is the most recent optimizer checkpoint of a running job.
type JobProgress struct {
	Iteration     int     `json:"iteration"`
	BestObjective float64 `json:"best_objective"`
}

// JobRecord is the full state of one job. Store accessors return copies, so
// a record in hand never changes under the caller.
type JobRecord struct {
	ID              string                 `json:"id"`
	Kind            JobKind                `json:"kind"`
	Status          JobStatus              `json:"status"`
	Input           JobInput               `json:"input"`
	CreatedAtUnixMs int64                  `json:"created_at_unix_ms"`
	StartedAtUnixMs int64                  `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64                  `json:"ended_at_unix_ms,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Progress        JobProgress            `json:"progress"`
	Result          *models.SolveResponse  `json:"result,omitempty"`
	Surface         []regimen.SurfacePoint `json:"surface,omitempty"`
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// JobStore keeps job records in memory behind a lock.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*JobRecord
}

// NewJobStore returns an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*JobRecord)}
}

// Create registers a new pending job and returns its record.
func (s *JobStore) Create(input JobInput) JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &JobRecord{
		ID:              uuid.NewString(),
		Kind:            input.Kind,
		Status:          JobStatusPending,
		Input:           input,
		CreatedAtUnixMs: nowUnixMs(),
	}
	s.jobs[rec.ID] = rec
	return *rec
}

// Get returns a copy of the job record.
func (s *JobStore) Get(id string) (JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return JobRecord{}, false
	}
	return *rec, true
}

// List returns copies of all jobs, newest first. A non-empty status narrows
// the result and limit > 0 caps its length.
func (s *JobStore) List(status JobStatus, limit int) []JobRecord {
	s.mu.RLock()
	records := make([]JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		if status != "" && rec.Status != status {
			continue
		}
		records = append(records, *rec)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtUnixMs != records[j].CreatedAtUnixMs {
			return records[i].CreatedAtUnixMs > records[j].CreatedAtUnixMs
		}
		return records[i].ID < records[j].ID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// SetStatus transitions a job and stamps the matching timestamp. Terminal
// records reject further transitions.
func (s *JobStore) SetStatus(id string, status JobStatus, errMsg string) (JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return JobRecord{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if rec.Status.Terminal() {
		return JobRecord{}, fmt.Errorf("%w: %s is %s", ErrJobTerminal, id, rec.Status)
	}

	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}
	now := nowUnixMs()
	if status == JobStatusRunning && rec.StartedAtUnixMs == 0 {
		rec.StartedAtUnixMs = now
	}
	if status.Terminal() {
		rec.EndedAtUnixMs = now
	}
	return *rec, nil
}

// SetProgress records the latest optimizer checkpoint.
func (s *JobStore) SetProgress(id string, iteration int, bestObjective float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	rec.Progress = JobProgress{Iteration: iteration, BestObjective: bestObjective}
	return nil
}

// SetSolveResult attaches a solve response. A response may arrive together
// with a failure when the optimizer ran out of budget, so the result is
// stored regardless of the job's eventual status.
func (s *JobStore) SetSolveResult(id string, result *models.SolveResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	rec.Result = result
	return nil
}

// SetSurfaceResult attaches the evaluated grid of a surface job.
func (s *JobStore) SetSurfaceResult(id string, points []regimen.SurfacePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	rec.Surface = points
	return nil
}
