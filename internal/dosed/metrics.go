package dosed

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Solve durations range from milliseconds for a root search on a small
// cohort to minutes for a loading-dose optimization on a large one.
var durationBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Metrics holds the server's Prometheus instruments. Everything registers
// on a private registry, so embedded servers and tests never collide on the
// process-global one.
type Metrics struct {
	registry *prometheus.Registry

	SolvesTotal          *prometheus.CounterVec
	SolveDuration        *prometheus.HistogramVec
	ObjectiveEvaluations prometheus.Counter
	JobsActive           prometheus.Gauge
	JobsTotal            *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
}

// NewMetrics registers the dosed instruments on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SolvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dosed",
			Name:      "solves_total",
			Help:      "Solve requests by search mode and outcome.",
		}, []string{"mode", "outcome"}),
		SolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dosed",
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock duration of solve requests by search mode.",
			Buckets:   durationBuckets,
		}, []string{"mode"}),
		ObjectiveEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dosed",
			Name:      "objective_evaluations_total",
			Help:      "Objective evaluations performed across all solves.",
		}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dosed",
			Name:      "jobs_active",
			Help:      "Jobs currently executing.",
		}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dosed",
			Name:      "jobs_total",
			Help:      "Jobs finished by kind and terminal status.",
		}, []string{"kind", "status"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dosed",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of finished jobs by kind.",
			Buckets:   durationBuckets,
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.SolvesTotal,
		m.SolveDuration,
		m.ObjectiveEvaluations,
		m.JobsActive,
		m.JobsTotal,
		m.JobDuration,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSolve records one synchronous solve call.
func (m *Metrics) ObserveSolve(mode, outcome string, elapsed time.Duration, evaluations int) {
	m.SolvesTotal.WithLabelValues(mode, outcome).Inc()
	m.SolveDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if evaluations > 0 {
		m.ObjectiveEvaluations.Add(float64(evaluations))
	}
}

// ObserveJob records one finished job.
func (m *Metrics) ObserveJob(kind JobKind, status JobStatus, elapsed time.Duration) {
	m.JobsTotal.WithLabelValues(string(kind), string(status)).Inc()
	m.JobDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}
