// Package metrics records gate run metrics in a private prometheus registry.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// Phases label check executions.
const (
	PhaseIteration  = "iteration"
	PhaseDiagnostic = "diagnostic"
)

// Recorder owns the run metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	iterations    prometheus.Counter
	checks        *prometheus.CounterVec
	checkDuration prometheus.Histogram
	progress      prometheus.Gauge
	diagnostics   *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greengate_runs_total",
			Help: "Finished gate runs by terminal state.",
		}, []string{"state"}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greengate_iterations_total",
			Help: "Loop iterations started.",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greengate_check_executions_total",
			Help: "Check executions by check name, result and phase.",
		}, []string{"check", "result", "phase"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "greengate_check_duration_seconds",
			Help:    "Wall time of a single check execution.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greengate_progress_score",
			Help: "Fraction of checks passing in the latest iteration.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greengate_diagnostic_runs_total",
			Help: "Diagnostic re-runs by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.runs, r.iterations, r.checks, r.checkDuration, r.progress, r.diagnostics)
	return r
}

// Registry exposes the registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RunFinished counts a run in its terminal state.
func (r *Recorder) RunFinished(state models.RunState) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(state.String()).Inc()
}

// IterationStarted counts one loop iteration.
func (r *Recorder) IterationStarted() {
	if r == nil {
		return
	}
	r.iterations.Inc()
}

// CheckExecuted records a check result.
func (r *Recorder) CheckExecuted(phase string, res models.CheckResult) {
	if r == nil {
		return
	}
	result := "fail"
	if res.Passed {
		result = "pass"
	}
	r.checks.WithLabelValues(res.Name, result, phase).Inc()
	r.checkDuration.Observe(res.Duration.Seconds())
}

// ProgressObserved sets the latest progress score.
func (r *Recorder) ProgressObserved(score float64) {
	if r == nil {
		return
	}
	r.progress.Set(score)
}

// DiagnosticFinished counts a diagnostic re-run.
func (r *Recorder) DiagnosticFinished(improved bool) {
	if r == nil {
		return
	}
	outcome := "no_improvement"
	if improved {
		outcome = "improved"
	}
	r.diagnostics.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
