// Package loop drives a compiled contract until its checks pass or the run
// fails closed.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/greengate/internal/audit"
	"github.com/ShayCichocki/greengate/internal/checklist"
	"github.com/ShayCichocki/greengate/internal/contract"
	"github.com/ShayCichocki/greengate/internal/metrics"
	"github.com/ShayCichocki/greengate/internal/progress"
	"github.com/ShayCichocki/greengate/internal/telemetry"
	"github.com/ShayCichocki/greengate/internal/verification"
	"github.com/ShayCichocki/greengate/pkg/models"
)

// Constructor errors.
var (
	ErrNilContract = errors.New("nil contract")
	ErrNilExecutor = errors.New("nil check executor")
)

// DefaultStagnationThreshold is the number of consecutive no-progress
// iterations that triggers the diagnostic re-run.
const DefaultStagnationThreshold = 2

// Run gate names and weights.
const (
	GateAllChecksPassed           = "all_checks_passed"
	GateChecklistSatisfied        = "checklist_satisfied"
	GateBudgetRespected           = "budget_respected"
	GateNoProgressPolicyRespected = "no_progress_policy_respected"
)

var runGateWeights = map[string]float64{
	GateAllChecksPassed:           0.5,
	GateChecklistSatisfied:        0.3,
	GateBudgetRespected:           0.1,
	GateNoProgressPolicyRespected: 0.1,
}

// Controller runs the anti-loop state machine over one contract. A controller
// is single use; each call to Run starts from a fresh checklist.
type Controller struct {
	contract      *models.Contract
	executor      verification.CheckExecutor
	emitter       audit.Emitter
	metrics       *metrics.Recorder
	tracer        trace.Tracer
	logger        *slog.Logger
	threshold     int
	maxIterations int
	now           func() time.Time

	records []models.IterationRecord
}

// Option configures a Controller.
type Option func(*Controller)

// WithEmitter sets the audit emitter. The default keeps records in memory.
func WithEmitter(e audit.Emitter) Option {
	return func(c *Controller) {
		if e != nil {
			c.emitter = e
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Controller) {
		c.metrics = r
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStagnationThreshold sets how many consecutive no-progress iterations
// trigger the diagnostic re-run. Zero disables stagnation handling.
func WithStagnationThreshold(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.threshold = n
		}
	}
}

// WithDefaultMaxIterations sets the budget used when the contract has none.
func WithDefaultMaxIterations(n int) Option {
	return func(c *Controller) {
		if n > 0 && c.contract.MaxIterations < 1 {
			c.maxIterations = n
		}
	}
}

// WithClock sets the timestamp source for audit records.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a controller for a compiled contract.
func New(ct *models.Contract, executor verification.CheckExecutor, opts ...Option) (*Controller, error) {
	if ct == nil {
		return nil, ErrNilContract
	}
	if err := ct.Validate(); err != nil {
		return nil, err
	}
	if executor == nil {
		return nil, ErrNilExecutor
	}

	c := &Controller{
		contract:      ct,
		executor:      executor,
		emitter:       &audit.MemoryEmitter{},
		logger:        slog.New(slog.DiscardHandler),
		threshold:     DefaultStagnationThreshold,
		maxIterations: ct.MaxIterations,
		now:           time.Now,
	}
	if c.maxIterations < 1 {
		c.maxIterations = contract.DefaultMaxIterations
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(telemetry.TracerName)
	}

	// Surface cyclic dependencies before any check runs.
	if _, err := checklist.NewMachine(ct.Items(), nil); err != nil {
		return nil, err
	}
	return c, nil
}

// MaxIterations returns the effective iteration budget.
func (c *Controller) MaxIterations() int {
	return c.maxIterations
}

// Records returns the per-iteration records of the last run.
func (c *Controller) Records() []models.IterationRecord {
	return c.records
}

// run holds the mutable bookkeeping of one Run call.
type run struct {
	machine *checklist.Machine
	codes   models.ReasonCodes

	iterations     int
	history        []float64
	deltas         []float64
	previous       float64
	hasPrevious    bool
	consecutive    int
	maxConsecutive int

	checklistDeltas []models.ChecklistDelta
	strictFail      []string

	strategyTag   string
	diagnosticRan bool
	diagnostic    *models.DiagnosticResult
}

// Run executes iterations until a terminal state. Check failures, stagnation
// and audit write failures are reported through the summary's reason codes;
// Run itself never fails.
func (c *Controller) Run(ctx context.Context) *models.RunSummary {
	ctx, span := c.tracer.Start(ctx, "gate.run", trace.WithAttributes(
		attribute.String("gate.run_id", c.contract.RunID),
		attribute.Int("gate.max_iterations", c.maxIterations),
		attribute.Int("gate.checks", len(c.contract.Checks)),
	))
	defer span.End()

	// The contract was validated in New, so this cannot fail.
	machine, _ := checklist.NewMachine(c.contract.Items(), c.logger)
	r := &run{machine: machine}
	c.records = nil

	state := models.RunRunning
	for iteration := 1; state == models.RunRunning; iteration++ {
		state = c.iterate(ctx, r, iteration)
	}

	summary := c.summarize(r, state)
	if err := c.emitter.WriteSummary(summary); err != nil {
		c.logger.Error("write summary failed", "run_id", c.contract.RunID, "error", err)
		c.failAudit(summary)
	}

	c.metrics.RunFinished(summary.TerminalState)
	span.SetAttributes(
		attribute.String("gate.terminal_state", summary.TerminalState.String()),
		attribute.Int("gate.iterations", summary.Iterations),
		attribute.Bool("gate.all_passed", summary.AllPassed),
	)
	c.logger.Info("run finished",
		"run_id", summary.RunID,
		"state", summary.TerminalState,
		"iterations", summary.Iterations,
		"all_passed", summary.AllPassed,
		"reason_codes", summary.ReasonCodes,
	)
	return summary
}

// iterate runs one pass of the loop and returns the resulting state.
func (c *Controller) iterate(ctx context.Context, r *run, iteration int) models.RunState {
	ctx, span := c.tracer.Start(ctx, "gate.iteration", trace.WithAttributes(
		attribute.Int("gate.iteration", iteration),
	))
	defer span.End()

	r.iterations = iteration
	c.metrics.IterationStarted()

	results, passed, passedCount, err := c.executeAll(ctx, iteration, audit.EventCheck, metrics.PhaseIteration)
	if err != nil {
		return c.abortAudit(r, err)
	}
	total := len(c.contract.Checks)

	score := models.Round(float64(passedCount)/float64(total), 6)
	delta := score
	if r.hasPrevious {
		delta = models.Round(score-r.previous, 6)
	}
	noProgress := r.hasPrevious && delta <= 0
	if noProgress {
		r.consecutive++
	} else {
		r.consecutive = 0
	}
	r.maxConsecutive = max(r.maxConsecutive, r.consecutive)
	r.history = append(r.history, score)
	r.deltas = append(r.deltas, delta)
	r.previous, r.hasPrevious = score, true

	c.metrics.ProgressObserved(score)
	span.SetAttributes(attribute.Float64("gate.progress_score", score))
	c.logger.Info("iteration complete",
		"run_id", c.contract.RunID,
		"iteration", iteration,
		"passed", passedCount,
		"total", total,
		"progress_score", score,
		"progress_delta", delta,
	)

	record := models.IterationRecord{
		Iteration:             iteration,
		Results:               results,
		ProgressScore:         score,
		ProgressDelta:         delta,
		NoProgressStep:        noProgress,
		ConsecutiveNoProgress: r.consecutive,
	}
	defer func() { c.records = append(c.records, record) }()

	if err := c.emit(audit.Event{
		Iteration: iteration,
		Event:     audit.EventProgressDelta,
		Progress: &audit.Progress{
			ProgressScore:         score,
			ProgressDelta:         delta,
			NoProgressStep:        noProgress,
			ConsecutiveNoProgress: r.consecutive,
		},
	}); err != nil {
		return c.abortAudit(r, err)
	}

	if len(c.contract.Items()) > 0 {
		snap := r.machine.Advance(iteration, passed)
		r.checklistDeltas = append(r.checklistDeltas, snap.Delta)
		r.strictFail = snap.Delta.StrictFailItemIDs
		d := snap.Delta
		record.ChecklistDelta = &d

		if err := c.emitTimeline(audit.TimelineRecord{
			Iteration:      iteration,
			ChecklistState: snap.Clone(),
			ChecklistDelta: snap.Delta,
		}); err != nil {
			return c.abortAudit(r, err)
		}

		if len(r.strictFail) > 0 {
			c.logger.Warn("strict checklist items unsatisfied",
				"run_id", c.contract.RunID,
				"iteration", iteration,
				"items", r.strictFail,
			)
			r.codes.Add(models.ReasonChecklistStrictFailed, models.ReasonChecklistEvidenceMissing)
			return models.RunStrictAborted
		}
	}

	if passedCount == total {
		return models.RunAllPassed
	}

	if c.threshold > 0 && r.consecutive >= c.threshold {
		if state := c.diagnose(ctx, r, iteration, score); state != models.RunRunning {
			return state
		}
	}

	if iteration >= c.maxIterations {
		return models.RunMaxIterExhausted
	}
	return models.RunRunning
}

// diagnose switches strategy and re-runs every check once. An improvement
// becomes the new baseline; anything else aborts the run.
func (c *Controller) diagnose(ctx context.Context, r *run, iteration int, score float64) models.RunState {
	r.strategyTag = models.StrategySwitchStalled
	r.codes.Add(models.ReasonNoProgressLoop)
	c.logger.Warn("no progress, running diagnostic",
		"run_id", c.contract.RunID,
		"iteration", iteration,
		"consecutive_no_progress", r.consecutive,
	)

	if err := c.emit(audit.Event{
		Iteration: iteration,
		Event:     audit.EventStrategySwitch,
		StrategySwitch: &audit.StrategySwitch{
			StrategySwitchTag: r.strategyTag,
			Policy:            audit.DiagnosticPolicy,
		},
	}); err != nil {
		return c.abortAudit(r, err)
	}

	r.diagnosticRan = true
	_, _, passedCount, err := c.executeAll(ctx, iteration, audit.EventDiagnosticCheck, metrics.PhaseDiagnostic)
	if err != nil {
		return c.abortAudit(r, err)
	}

	diagScore := models.Round(float64(passedCount)/float64(len(c.contract.Checks)), 6)
	diagDelta := models.Round(diagScore-score, 6)
	r.diagnostic = &models.DiagnosticResult{
		DiagnosticProgress:     diagScore,
		DiagnosticDelta:        diagDelta,
		DiagnosticPassedChecks: passedCount,
	}
	c.metrics.DiagnosticFinished(diagDelta > 0)

	if err := c.emit(audit.Event{
		Iteration:        iteration,
		Event:            audit.EventDiagnosticResult,
		DiagnosticResult: r.diagnostic,
	}); err != nil {
		return c.abortAudit(r, err)
	}

	if diagDelta <= 0 {
		r.codes.Add(models.ReasonDiagnosticNoImprovement)
		return models.RunDiagnosticAborted
	}

	r.previous = diagScore
	r.history = append(r.history, diagScore)
	r.deltas = append(r.deltas, diagDelta)
	r.consecutive = 0
	return models.RunRunning
}

// executeAll runs every check in declaration order. The pass map is keyed by
// check name; a name shared by several checks passes only if all of them do.
func (c *Controller) executeAll(ctx context.Context, iteration int, event audit.EventType, phase string) ([]models.CheckResult, map[string]bool, int, error) {
	results := make([]models.CheckResult, 0, len(c.contract.Checks))
	passed := make(map[string]bool, len(c.contract.Checks))
	count := 0

	for _, check := range c.contract.Checks {
		res := c.executeCheck(ctx, check, phase)
		results = append(results, res)

		if prev, seen := passed[check.Name]; seen {
			passed[check.Name] = prev && res.Passed
		} else {
			passed[check.Name] = res.Passed
		}
		if res.Passed {
			count++
		}

		if err := c.emit(audit.Event{
			Iteration:   iteration,
			Event:       event,
			CheckResult: &res,
		}); err != nil {
			return nil, nil, 0, err
		}
	}
	return results, passed, count, nil
}

func (c *Controller) executeCheck(ctx context.Context, check models.Check, phase string) models.CheckResult {
	ctx, span := c.tracer.Start(ctx, "gate.check", trace.WithAttributes(
		attribute.String("gate.check", check.Name),
		attribute.String("gate.phase", phase),
	))
	defer span.End()

	res := c.executor.Execute(ctx, check)
	c.metrics.CheckExecuted(phase, res)
	span.SetAttributes(
		attribute.Bool("gate.passed", res.Passed),
		attribute.Int("gate.exit_code", res.ExitCode),
	)
	c.logger.Debug("check executed",
		"run_id", c.contract.RunID,
		"check", check.Name,
		"phase", phase,
		"passed", res.Passed,
		"exit_code", res.ExitCode,
	)
	return res
}

func (c *Controller) emit(ev audit.Event) error {
	ev.Timestamp = c.now().UTC()
	ev.RunID = c.contract.RunID
	return c.emitter.Emit(ev)
}

func (c *Controller) emitTimeline(rec audit.TimelineRecord) error {
	rec.Timestamp = c.now().UTC()
	rec.RunID = c.contract.RunID
	return c.emitter.EmitTimeline(rec)
}

// abortAudit fails the run closed after an audit write error.
func (c *Controller) abortAudit(r *run, err error) models.RunState {
	c.logger.Error("audit write failed", "run_id", c.contract.RunID, "iteration", r.iterations, "error", err)
	r.codes.Add(models.ReasonAuditLogWriteFailed)
	return models.RunAuditAborted
}

// failAudit marks an already built summary as failed after the summary
// itself could not be persisted.
func (c *Controller) failAudit(s *models.RunSummary) {
	var codes models.ReasonCodes
	codes.Add(s.ReasonCodes...)
	codes.Add(models.ReasonAuditLogWriteFailed, models.ReasonFailClosedAbort)
	s.ReasonCodes = codes.List()
	s.AllPassed = false
	s.Aborted = true
	s.TerminalState = models.RunAuditAborted
	s.SuggestedNext = []string{models.SuggestInspectIterationLog, models.SuggestSwitchStrategy}
	if g, ok := s.GateScores[GateAllChecksPassed]; ok {
		g.Passed = false
		s.GateScores[GateAllChecksPassed] = g
	}
}

// summarize builds the terminal record.
func (c *Controller) summarize(r *run, state models.RunState) *models.RunSummary {
	allPassed := state == models.RunAllPassed
	aborted := state == models.RunStrictAborted || state == models.RunDiagnosticAborted || state == models.RunAuditAborted

	if allPassed {
		// A stall that later recovered is not a failure.
		r.codes = models.ReasonCodes{}
	} else {
		r.codes.Add(models.ReasonChecksFailed)
		if aborted {
			r.codes.Add(models.ReasonFailClosedAbort)
		}
		if state == models.RunMaxIterExhausted {
			r.codes.Add(models.ReasonMaxIterationsReached)
		}
	}
	r.codes.Add(contract.ValidateDeclarations(c.contract.Declarations, contract.PhaseRun)...)
	if r.codes.Len() > 0 {
		allPassed = false
	}

	items := c.contract.Items()
	checklistDeltas := r.checklistDeltas
	if checklistDeltas == nil {
		checklistDeltas = []models.ChecklistDelta{}
	}
	strictFail := r.strictFail
	if strictFail == nil {
		strictFail = []string{}
	}
	summaryProgress := progress.Summarize(r.history, r.deltas, progress.FlipCount(checklistDeltas), len(items))

	summary := &models.RunSummary{
		RunID:                  c.contract.RunID,
		AllPassed:              allPassed,
		Aborted:                aborted,
		StrictEarlyTerminated:  state == models.RunStrictAborted,
		TerminalState:          state,
		Iterations:             r.iterations,
		MaxIterations:          c.maxIterations,
		LogPath:                c.emitter.LogPath(),
		ChecklistTimelineRef:   c.emitter.TimelinePath(),
		ChecklistState:         r.machine.Current().Clone(),
		ChecklistDeltas:        checklistDeltas,
		StrictFailItemIDs:      strictFail,
		ProgressDelta:          summaryProgress.NetDelta,
		ProgressDeltaAggregate: summaryProgress.Aggregate,
		ProgressTrend:          summaryProgress.Trend,
		ProgressSummary:        summaryProgress.ProgressSummary,
		ReasonCodes:            r.codes.List(),
		StrategySwitchTag:      r.strategyTag,
		DiagnosticRan:          r.diagnosticRan,
		DiagnosticResult:       r.diagnostic,
		NoProgressCounters: models.NoProgressCounters{
			MaxConsecutiveNoProgress: r.maxConsecutive,
			TriggerThreshold:         c.threshold,
		},
		SelfCorrectionScores: selfCorrectionScores(c.contract.CorrectionRollout),
		SuggestedNext:        []string{},
	}
	if !allPassed {
		summary.SuggestedNext = []string{models.SuggestInspectIterationLog, models.SuggestSwitchStrategy}
	}

	summary.GateScores = models.GateScores{
		GateAllChecksPassed:           runGate(GateAllChecksPassed, allPassed),
		GateChecklistSatisfied:        runGate(GateChecklistSatisfied, summary.ChecklistSatisfied()),
		GateBudgetRespected:           runGate(GateBudgetRespected, r.iterations <= c.maxIterations),
		GateNoProgressPolicyRespected: runGate(GateNoProgressPolicyRespected, !(r.diagnosticRan && !aborted)),
	}
	return summary
}

func runGate(name string, passed bool) models.GateScore {
	return models.GateScore{Passed: passed, Weight: runGateWeights[name]}
}

func selfCorrectionScores(rollout map[string]any) models.SelfCorrectionScores {
	if len(rollout) == 0 {
		return models.SelfCorrectionScores{}
	}
	return models.SelfCorrectionScores{
		ValidatorScoreO1: rollout["validator_score_o1"],
		ValidatorScoreO2: rollout["validator_score_o2"],
		ImprovementDelta: rollout["improvement_delta"],
	}
}
