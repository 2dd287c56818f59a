// Package dosed serves the dosing engine over HTTP: a synchronous solve
// endpoint, asynchronous jobs with cancellation and progress streaming, and
// Prometheus metrics.
package dosed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
	"github.com/ryantjarrett/CTSI-2024/pkg/config"
	"github.com/ryantjarrett/CTSI-2024/pkg/logger"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

// HTTPServer exposes the REST/SSE API.
type HTTPServer struct {
	mux         *http.ServeMux
	store       *JobStore
	executor    *JobExecutor
	solver      *regimen.Solver
	defaultSpec *config.PopulationSpec
	metrics     *Metrics
}

// NewHTTPServer builds the server and its routing table.
func NewHTTPServer(store *JobStore, executor *JobExecutor, solver *regimen.Solver, defaultSpec *config.PopulationSpec, metrics *Metrics) *HTTPServer {
	if defaultSpec == nil {
		defaultSpec = config.DefaultPopulationSpec()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &HTTPServer{
		mux:         http.NewServeMux(),
		store:       store,
		executor:    executor,
		solver:      solver,
		defaultSpec: defaultSpec,
		metrics:     metrics,
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/v1/regimens:solve", s.handleSolve)
	s.mux.HandleFunc("/v1/jobs", s.handleJobs)
	s.mux.HandleFunc("/v1/jobs/", s.handleJobByID)
	return s
}

// Handler returns the root handler for mounting on an http.Server.
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// solveRequestBody is the wire shape of a synchronous solve. The population
// override travels as embedded YAML, same format as the population file.
type solveRequestBody struct {
	Request        models.SolveRequest `json:"request"`
	PopulationYAML string              `json:"population_yaml,omitempty"`
}

func (s *HTTPServer) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body solveRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	spec := s.defaultSpec
	if body.PopulationYAML != "" {
		parsed, err := config.ParsePopulationSpecYAMLString(body.PopulationYAML)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid population spec: %v", err))
			return
		}
		spec = parsed
	}

	mode := "root"
	if body.Request.LoadingDoseEnabled {
		mode = "loading"
	}

	start := time.Now()
	resp, err := s.solver.Solve(r.Context(), body.Request, spec)
	elapsed := time.Since(start)

	if err != nil {
		var failed *models.OptimizationFailedError
		if errors.As(err, &failed) && resp != nil {
			// Budget exhaustion still produced a usable iterate;
			// return it alongside the error.
			s.metrics.ObserveSolve(mode, "not_converged", elapsed, resp.Diagnostics.FuncEvaluations)
			s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  err.Error(),
				"detail": errorDetail(err),
				"result": resp,
			})
			return
		}
		s.metrics.ObserveSolve(mode, "error", elapsed, 0)
		logger.Warn("solve request failed", "mode", mode, "error", err)
		s.writeTypedError(w, err)
		return
	}

	s.metrics.ObserveSolve(mode, "converged", elapsed, resp.Diagnostics.FuncEvaluations)
	logger.Info("solve served",
		"mode", mode,
		"metric", resp.Metric,
		"recommended_dose_mg", resp.RecommendedDoseMg,
		"recommended_loading_dose_mg", resp.RecommendedLoadingDoseMg,
		"population_fingerprint", resp.PopulationFingerprint,
		"elapsed", elapsed)
	s.writeJSON(w, http.StatusOK, resp)
}

// createJobRequest is the wire shape of POST /v1/jobs.
type createJobRequest struct {
	Kind           string              `json:"kind"`
	Request        models.SolveRequest `json:"request"`
	PopulationYAML string              `json:"population_yaml,omitempty"`
	Surface        *SurfaceSpec        `json:"surface,omitempty"`
	CallbackURL    string              `json:"callback_url,omitempty"`
	CallbackSecret string              `json:"callback_secret,omitempty"`
}

func (s *HTTPServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var body createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	kind, err := ParseJobKind(body.Kind)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if kind == JobKindSurface && body.Surface == nil {
		s.writeError(w, http.StatusBadRequest, "surface job needs a dose grid")
		return
	}
	if body.CallbackURL != "" {
		// Reject bad callbacks here so the submitter hears about it;
		// the notifier re-checks before delivery.
		if err := validateCallbackURL(body.CallbackURL); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec := s.store.Create(JobInput{
		Kind:           kind,
		Request:        body.Request,
		PopulationYAML: body.PopulationYAML,
		Surface:        body.Surface,
		CallbackURL:    body.CallbackURL,
		CallbackSecret: body.CallbackSecret,
	})

	started, err := s.executor.Start(rec.ID)
	if err != nil {
		logger.Error("failed to start job", "job_id", rec.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to start job: %v", err))
		return
	}

	logger.Info("job created", "job_id", started.ID, "kind", started.Kind)
	s.writeJSON(w, http.StatusCreated, map[string]any{"job": started})
}

func (s *HTTPServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var status JobStatus
	if v := r.URL.Query().Get("status"); v != "" {
		status = JobStatus(strings.ToUpper(v))
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	jobs := s.store.List(status, limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleJobByID routes /v1/jobs/{id}, /v1/jobs/{id}:cancel and
// /v1/jobs/{id}/events.
func (s *HTTPServer) handleJobByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	switch {
	case strings.HasSuffix(path, ":cancel"):
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleCancelJob(w, strings.TrimSuffix(path, ":cancel"))
	case strings.HasSuffix(path, "/events"):
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleJobEvents(w, r, strings.TrimSuffix(path, "/events"))
	default:
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleGetJob(w, path)
	}
}

func (s *HTTPServer) handleGetJob(w http.ResponseWriter, jobID string) {
	rec, ok := s.store.Get(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"job": rec})
}

func (s *HTTPServer) handleCancelJob(w http.ResponseWriter, jobID string) {
	rec, err := s.executor.Cancel(jobID)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, map[string]any{"job": rec})
	case errors.Is(err, ErrJobIDMissing):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrJobTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleJobEvents streams job progress over SSE by polling the store. The
// stream closes after a terminal "complete" event or when the client leaves.
func (s *HTTPServer) handleJobEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	rec, ok := s.store.Get(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}

	interval := 500 * time.Millisecond
	if v := r.URL.Query().Get("interval_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid interval_ms %q", v))
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	send := func(event string, data any) {
		writeSSEEvent(w, event, data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	lastStatus := rec.Status
	lastProgress := rec.Progress
	send("status", map[string]any{"job_id": rec.ID, "status": rec.Status})
	if rec.Status.Terminal() {
		send("complete", rec)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			rec, ok := s.store.Get(jobID)
			if !ok {
				send("error", map[string]string{"error": "job disappeared"})
				return
			}
			if rec.Progress != lastProgress {
				send("progress", rec.Progress)
				lastProgress = rec.Progress
			}
			if rec.Status != lastStatus {
				send("status", map[string]any{"job_id": rec.ID, "status": rec.Status})
				lastStatus = rec.Status
			}
			if rec.Status.Terminal() {
				send("complete", rec)
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: {\"error\":%q}\n\n", err.Error())
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeTypedError maps the engine's error taxonomy onto HTTP statuses:
// invalid input is the caller's fault, unreachable targets and exhausted
// budgets are unprocessable, numerical breakdown is ours.
func (s *HTTPServer) writeTypedError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if detail := errorDetail(err); detail != nil {
		body["detail"] = detail
	}
	s.writeJSON(w, errorStatus(err), body)
}

func errorStatus(err error) int {
	var (
		invalid  *models.InvalidArgumentError
		noRoot   *models.NoRootFoundError
		domain   *models.DomainError
		failed   *models.OptimizationFailedError
		unstable *models.NumericalInstabilityError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &noRoot), errors.As(err, &domain), errors.As(err, &failed):
		return http.StatusUnprocessableEntity
	case errors.As(err, &unstable):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// errorDetail extracts the structured fields of a typed engine error so
// clients can react without parsing messages.
func errorDetail(err error) map[string]any {
	var invalid *models.InvalidArgumentError
	if errors.As(err, &invalid) {
		return map[string]any{
			"type":   "invalid_argument",
			"field":  invalid.Field,
			"reason": invalid.Reason,
		}
	}
	var noRoot *models.NoRootFoundError
	if errors.As(err, &noRoot) {
		return map[string]any{
			"type":    "no_root_found",
			"lower":   noRoot.Lower,
			"upper":   noRoot.Upper,
			"f_lower": noRoot.FLower,
			"f_upper": noRoot.FUpper,
		}
	}
	var failed *models.OptimizationFailedError
	if errors.As(err, &failed) {
		return map[string]any{
			"type":               "optimization_failed",
			"status":             failed.Status,
			"iterations":         failed.Iterations,
			"func_evaluations":   failed.FuncEvaluations,
			"best_objective":     failed.BestObjective,
			"criterion_residual": failed.CriterionResidual,
		}
	}
	var domain *models.DomainError
	if errors.As(err, &domain) {
		return map[string]any{
			"type":     "domain",
			"quantity": domain.Quantity,
			"value":    domain.Value,
			"reason":   domain.Reason,
		}
	}
	var unstable *models.NumericalInstabilityError
	if errors.As(err, &unstable) {
		return map[string]any{
			"type":       "numerical_instability",
			"quantity":   unstable.Quantity,
			"individual": unstable.Individual,
			"time_days":  unstable.TimeDays,
			"value":      unstable.Value,
		}
	}
	return nil
}
