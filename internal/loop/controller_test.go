package loop

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ShayCichocki/greengate/internal/audit"
	"github.com/ShayCichocki/greengate/internal/metrics"
	"github.com/ShayCichocki/greengate/internal/verification"
	"github.com/ShayCichocki/greengate/pkg/models"
)

// scriptedExecutor replays pass/fail outcomes per check name. The last
// outcome repeats once the script runs out; unknown checks fail.
type scriptedExecutor struct {
	script map[string][]bool
	calls  map[string]int
}

var _ verification.CheckExecutor = (*scriptedExecutor)(nil)

func script(s map[string][]bool) *scriptedExecutor {
	return &scriptedExecutor{script: s, calls: make(map[string]int)}
}

func (s *scriptedExecutor) Execute(_ context.Context, check models.Check) models.CheckResult {
	seq := s.script[check.Name]
	i := s.calls[check.Name]
	s.calls[check.Name]++

	passed := false
	if len(seq) > 0 {
		passed = seq[min(i, len(seq)-1)]
	}
	exitCode := 1
	if passed {
		exitCode = 0
	}
	return models.CheckResult{
		Name:     check.Name,
		Command:  check.Command,
		ExitCode: exitCode,
		Passed:   passed,
		Duration: time.Millisecond,
	}
}

var fixedNow = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func newContract(maxIterations int, checks []string, items ...models.ChecklistItem) *models.Contract {
	c := &models.Contract{
		RunID:         "run-1",
		MaxIterations: maxIterations,
		ChecklistContract: models.ChecklistContract{
			RunID: "run-1",
			Items: items,
		},
	}
	for _, name := range checks {
		c.Checks = append(c.Checks, models.Check{Name: name, Command: "true", PassCondition: models.PassExitCodeZero})
	}
	return c
}

func item(id, check string, strictness models.Strictness, deps ...string) models.ChecklistItem {
	return models.ChecklistItem{
		ItemID:        id,
		Question:      id + "?",
		Strictness:    strictness,
		DependsOn:     deps,
		Status:        models.ItemUnsatisfied,
		PassWhenCheck: check,
	}
}

func runController(t *testing.T, ct *models.Contract, exec verification.CheckExecutor, opts ...Option) (*models.RunSummary, *audit.MemoryEmitter) {
	t.Helper()
	em := &audit.MemoryEmitter{}
	opts = append([]Option{WithEmitter(em), WithClock(fixedNow)}, opts...)
	c, err := New(ct, exec, opts...)
	require.NoError(t, err)
	return c.Run(context.Background()), em
}

func TestRun_ScenarioA_PassesFirstIteration(t *testing.T) {
	summary, em := runController(t, newContract(5, []string{"unit"}), script(map[string][]bool{"unit": {true}}))

	assert.True(t, summary.AllPassed)
	assert.Equal(t, models.RunAllPassed, summary.TerminalState)
	assert.Equal(t, 1, summary.Iterations)
	assert.Empty(t, summary.ReasonCodes)
	assert.NotNil(t, summary.ReasonCodes)
	assert.Empty(t, summary.SuggestedNext)
	assert.Equal(t, []float64{1}, summary.ProgressSummary.History)
	assert.InDelta(t, 1.0, summary.GateScores.Credit(), 1e-9)
	assert.Same(t, summary, em.Summary)

	require.Len(t, em.Events, 2)
	assert.Equal(t, audit.EventCheck, em.Events[0].Event)
	assert.Equal(t, "run-1", em.Events[0].RunID)
	assert.Equal(t, fixedNow(), em.Events[0].Timestamp)
	assert.Equal(t, audit.EventProgressDelta, em.Events[1].Event)
	assert.Equal(t, 1.0, em.Events[1].Progress.ProgressScore)
}

func TestRun_ScenarioB_AlwaysFailing(t *testing.T) {
	t.Run("stagnation disabled exhausts the budget", func(t *testing.T) {
		summary, em := runController(t, newContract(4, []string{"unit"}), script(map[string][]bool{"unit": {false}}),
			WithStagnationThreshold(0))

		assert.False(t, summary.AllPassed)
		assert.Equal(t, models.RunMaxIterExhausted, summary.TerminalState)
		assert.Equal(t, 4, summary.Iterations)
		assert.False(t, summary.Aborted)
		assert.False(t, summary.DiagnosticRan)
		assert.Equal(t, []string{
			models.ReasonChecksFailed,
			models.ReasonMaxIterationsReached,
		}, summary.ReasonCodes)
		assert.Len(t, em.EventsOf(audit.EventCheck), 4)
		assert.Equal(t, 3, summary.NoProgressCounters.MaxConsecutiveNoProgress)
		assert.Equal(t, 0, summary.NoProgressCounters.TriggerThreshold)
		assert.Equal(t, []string{models.SuggestInspectIterationLog, models.SuggestSwitchStrategy}, summary.SuggestedNext)
	})

	t.Run("default threshold aborts after the diagnostic", func(t *testing.T) {
		summary, _ := runController(t, newContract(4, []string{"unit"}), script(map[string][]bool{"unit": {false}}))

		assert.Equal(t, models.RunDiagnosticAborted, summary.TerminalState)
		assert.Equal(t, 3, summary.Iterations)
		assert.Contains(t, summary.ReasonCodes, models.ReasonChecksFailed)
		assert.NotContains(t, summary.ReasonCodes, models.ReasonMaxIterationsReached)
	})
}

func TestRun_ScenarioC_BlockedDependency(t *testing.T) {
	ct := newContract(3, []string{"a", "b"},
		item("a", "a", models.StrictnessNormal),
		item("b", "b", models.StrictnessNormal, "a"),
	)
	summary, em := runController(t, ct,
		script(map[string][]bool{"a": {false}, "b": {true}}),
		WithStagnationThreshold(0))

	assert.Equal(t, models.RunMaxIterExhausted, summary.TerminalState)
	require.Len(t, em.Timeline, 3)
	for _, rec := range em.Timeline {
		require.Len(t, rec.ChecklistState, 2)
		assert.Equal(t, models.ItemUnsatisfied, rec.ChecklistState[0].Status)
		assert.Equal(t, models.ItemBlocked, rec.ChecklistState[1].Status)
		assert.Nil(t, rec.ChecklistState[1].SatisfiedAtStep)
		assert.NotContains(t, rec.ChecklistDelta.FlippedToSatisfied, "b")
	}
	assert.False(t, summary.GateScores[GateChecklistSatisfied].Passed)
	assert.Equal(t, 0, summary.ProgressSummary.ChecklistFlipCount)
}

func TestRun_ScenarioD_StrictAbortsImmediately(t *testing.T) {
	ct := newContract(10, []string{"lint", "unit"},
		item("tests", "unit", models.StrictnessStrict),
	)
	summary, em := runController(t, ct, script(map[string][]bool{"lint": {true}, "unit": {false}}))

	assert.Equal(t, models.RunStrictAborted, summary.TerminalState)
	assert.Equal(t, 1, summary.Iterations)
	assert.True(t, summary.StrictEarlyTerminated)
	assert.True(t, summary.Aborted)
	assert.Equal(t, []string{"tests"}, summary.StrictFailItemIDs)
	assert.Equal(t, []string{
		models.ReasonChecklistStrictFailed,
		models.ReasonChecklistEvidenceMissing,
		models.ReasonChecksFailed,
		models.ReasonFailClosedAbort,
	}, summary.ReasonCodes)
	assert.Len(t, em.Timeline, 1)
}

func TestRun_ScenarioE_DiagnosticNoImprovement(t *testing.T) {
	summary, em := runController(t, newContract(10, []string{"unit"}), script(map[string][]bool{"unit": {false}}))

	assert.Equal(t, models.RunDiagnosticAborted, summary.TerminalState)
	assert.Equal(t, models.StrategySwitchStalled, summary.StrategySwitchTag)
	assert.True(t, summary.DiagnosticRan)
	assert.True(t, summary.Aborted)
	require.NotNil(t, summary.DiagnosticResult)
	assert.Equal(t, 0.0, summary.DiagnosticResult.DiagnosticDelta)
	assert.Equal(t, []string{
		models.ReasonNoProgressLoop,
		models.ReasonDiagnosticNoImprovement,
		models.ReasonChecksFailed,
		models.ReasonFailClosedAbort,
	}, summary.ReasonCodes)
	assert.True(t, summary.GateScores[GateNoProgressPolicyRespected].Passed)

	require.Len(t, em.EventsOf(audit.EventStrategySwitch), 1)
	assert.Equal(t, audit.DiagnosticPolicy, em.EventsOf(audit.EventStrategySwitch)[0].StrategySwitch.Policy)
	assert.Len(t, em.EventsOf(audit.EventDiagnosticCheck), 1)
	assert.Len(t, em.EventsOf(audit.EventDiagnosticResult), 1)
}

func TestRun_StagnationTriggersExactlyAtThreshold(t *testing.T) {
	tests := []struct {
		name          string
		threshold     int
		wantIteration int
	}{
		{name: "threshold 1", threshold: 1, wantIteration: 2},
		{name: "threshold 2", threshold: 2, wantIteration: 3},
		{name: "threshold 3", threshold: 3, wantIteration: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, em := runController(t, newContract(10, []string{"unit"}), script(map[string][]bool{"unit": {false}}),
				WithStagnationThreshold(tt.threshold))

			switches := em.EventsOf(audit.EventStrategySwitch)
			require.Len(t, switches, 1)
			assert.Equal(t, tt.wantIteration, switches[0].Iteration)
		})
	}
}

func TestRun_DiagnosticRecovery(t *testing.T) {
	// Iterations 1-3 fail, the diagnostic passes and becomes the baseline.
	summary, _ := runController(t, newContract(10, []string{"unit"}),
		script(map[string][]bool{"unit": {false, false, false, true}}))

	assert.True(t, summary.AllPassed)
	assert.Equal(t, models.RunAllPassed, summary.TerminalState)
	assert.Equal(t, 4, summary.Iterations)
	assert.True(t, summary.DiagnosticRan)
	assert.Empty(t, summary.ReasonCodes)
	assert.Equal(t, []float64{0, 0, 0, 1, 1}, summary.ProgressSummary.History)
	assert.Equal(t, models.TrendUp, summary.ProgressTrend)
	assert.False(t, summary.GateScores[GateNoProgressPolicyRespected].Passed)
}

func TestRun_StrictBeatsAllPassed(t *testing.T) {
	ct := newContract(5, []string{"unit"},
		item("docs", "docs", models.StrictnessStrict),
	)
	summary, _ := runController(t, ct, script(map[string][]bool{"unit": {true}}))

	assert.Equal(t, models.RunStrictAborted, summary.TerminalState)
	assert.False(t, summary.AllPassed)
}

func TestRun_StrictBlockedDoesNotAbort(t *testing.T) {
	ct := newContract(2, []string{"a"},
		item("a", "a", models.StrictnessNormal),
		item("b", "a", models.StrictnessStrict, "a"),
	)
	summary, em := runController(t, ct, script(map[string][]bool{"a": {false}}), WithStagnationThreshold(0))

	assert.Equal(t, models.RunMaxIterExhausted, summary.TerminalState)
	assert.Empty(t, summary.StrictFailItemIDs)
	require.Len(t, em.Timeline, 2)
	assert.Equal(t, []string{"b"}, em.Timeline[0].ChecklistDelta.StrictBlockedItemIDs)
}

func TestRun_MonotonicSatisfaction(t *testing.T) {
	ct := newContract(3, []string{"a", "b"},
		item("a", "a", models.StrictnessNormal),
	)
	summary, em := runController(t, ct,
		script(map[string][]bool{"a": {true, false}, "b": {false}}),
		WithStagnationThreshold(0))

	require.Len(t, em.Timeline, 3)
	for _, rec := range em.Timeline {
		assert.Equal(t, models.ItemSatisfied, rec.ChecklistState[0].Status)
		require.NotNil(t, rec.ChecklistState[0].SatisfiedAtStep)
		assert.Equal(t, 1, *rec.ChecklistState[0].SatisfiedAtStep)
	}
	assert.Equal(t, []string{"a"}, em.Timeline[0].ChecklistDelta.FlippedToSatisfied)
	assert.Empty(t, em.Timeline[1].ChecklistDelta.FlippedToSatisfied)
	assert.Equal(t, 1, summary.ProgressSummary.ChecklistFlipCount)
	assert.True(t, summary.GateScores[GateChecklistSatisfied].Passed)
}

func TestRun_DuplicateCheckNamesMustAllPass(t *testing.T) {
	ct := newContract(1, nil, item("x", "dup", models.StrictnessNormal))
	ct.Checks = []models.Check{
		{Name: "dup", Command: "true"},
		{Name: "dup", Command: "false"},
	}
	exec := &alternatingExecutor{}
	_, em := runController(t, ct, exec)

	require.Len(t, em.Timeline, 1)
	assert.Equal(t, models.ItemUnsatisfied, em.Timeline[0].ChecklistState[0].Status)
}

// alternatingExecutor passes every other call.
type alternatingExecutor struct{ n int }

func (a *alternatingExecutor) Execute(_ context.Context, check models.Check) models.CheckResult {
	a.n++
	return models.CheckResult{Name: check.Name, Passed: a.n%2 == 1}
}

func TestRun_AuditWriteFailureFailsClosed(t *testing.T) {
	em := &audit.MemoryEmitter{FailAfter: 1}
	c, err := New(newContract(5, []string{"unit"}), script(map[string][]bool{"unit": {true}}), WithEmitter(em))
	require.NoError(t, err)

	summary := c.Run(context.Background())

	assert.False(t, summary.AllPassed)
	assert.Equal(t, models.RunAuditAborted, summary.TerminalState)
	assert.Equal(t, 1, summary.Iterations)
	assert.Equal(t, []string{
		models.ReasonAuditLogWriteFailed,
		models.ReasonChecksFailed,
		models.ReasonFailClosedAbort,
	}, summary.ReasonCodes)
}

func TestRun_RunPhaseDeclarations(t *testing.T) {
	ct := newContract(5, []string{"unit"})
	ct.TrustLevel = models.TrustLevelUntrusted

	summary, _ := runController(t, ct, script(map[string][]bool{"unit": {true}}))

	assert.False(t, summary.AllPassed)
	assert.Equal(t, []string{
		models.ReasonMissingExecutionProfile,
		models.ReasonMissingExecutionAuditRef,
	}, summary.ReasonCodes)
	assert.False(t, summary.GateScores[GateAllChecksPassed].Passed)
}

func TestRun_SelfCorrectionScoresEchoed(t *testing.T) {
	ct := newContract(5, []string{"unit"})
	ct.CorrectionRollout = map[string]any{
		"validator_score_o1": 0.5,
		"validator_score_o2": 0.9,
		"improvement_delta":  0.4,
	}
	summary, _ := runController(t, ct, script(map[string][]bool{"unit": {true}}))

	assert.Equal(t, 0.5, summary.SelfCorrectionScores.ValidatorScoreO1)
	assert.Equal(t, 0.9, summary.SelfCorrectionScores.ValidatorScoreO2)
	assert.Equal(t, 0.4, summary.SelfCorrectionScores.ImprovementDelta)
}

func TestRun_RecordsIterations(t *testing.T) {
	em := &audit.MemoryEmitter{}
	c, err := New(newContract(3, []string{"a", "b"}), script(map[string][]bool{"a": {false, true}, "b": {true}}),
		WithEmitter(em))
	require.NoError(t, err)

	summary := c.Run(context.Background())
	require.True(t, summary.AllPassed)

	records := c.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Passed())
	assert.Equal(t, 0.5, records[0].ProgressScore)
	assert.Equal(t, 2, records[1].Passed())
	assert.Equal(t, 0.5, records[1].ProgressDelta)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, script(nil))
	assert.ErrorIs(t, err, ErrNilContract)

	_, err = New(newContract(1, nil), script(nil))
	assert.ErrorIs(t, err, models.ErrNoChecks)

	_, err = New(newContract(1, []string{"a"}), nil)
	assert.ErrorIs(t, err, ErrNilExecutor)

	cyclic := newContract(1, []string{"a"},
		item("a", "a", models.StrictnessNormal, "b"),
		item("b", "a", models.StrictnessNormal, "a"),
	)
	_, err = New(cyclic, script(nil))
	assert.Error(t, err)
}

func TestNew_DefaultMaxIterations(t *testing.T) {
	c, err := New(newContract(0, []string{"a"}), script(nil))
	require.NoError(t, err)
	assert.Equal(t, 5, c.MaxIterations())

	c, err = New(newContract(0, []string{"a"}), script(nil), WithDefaultMaxIterations(7))
	require.NoError(t, err)
	assert.Equal(t, 7, c.MaxIterations())

	c, err = New(newContract(2, []string{"a"}), script(nil), WithDefaultMaxIterations(7))
	require.NoError(t, err)
	assert.Equal(t, 2, c.MaxIterations())
}

func TestRun_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	runController(t, newContract(5, []string{"a", "b"}), script(map[string][]bool{"a": {true}, "b": {true}}),
		WithTracer(tp.Tracer("test")))

	names := map[string]int{}
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}
	assert.Equal(t, map[string]int{"gate.run": 1, "gate.iteration": 1, "gate.check": 2}, names)
}

func TestRun_Metrics(t *testing.T) {
	rec := metrics.NewRecorder()
	runController(t, newContract(5, []string{"unit"}), script(map[string][]bool{"unit": {false, true}}),
		WithMetrics(rec))

	path := filepath.Join(t.TempDir(), "m.prom")
	require.NoError(t, rec.WriteTextfile(path))
	assert.FileExists(t, path)
}

func TestRun_FileEmitter(t *testing.T) {
	dir := t.TempDir()
	em, err := audit.NewFileEmitter(dir)
	require.NoError(t, err)

	c, err := New(newContract(5, []string{"unit"}, item("u", "unit", models.StrictnessNormal)),
		script(map[string][]bool{"unit": {false, true}}), WithEmitter(em), WithClock(fixedNow))
	require.NoError(t, err)
	summary := c.Run(context.Background())
	require.NoError(t, em.Close())

	assert.Equal(t, filepath.Join(dir, audit.IterationLogFile), summary.LogPath)
	assert.Equal(t, filepath.Join(dir, audit.TimelineFile), summary.ChecklistTimelineRef)

	got, err := audit.ReadRun(dir)
	require.NoError(t, err)
	assert.Len(t, got.Events, 4)
	assert.Len(t, got.Timeline, 2)
	require.NotNil(t, got.Summary)
	assert.True(t, got.Summary.AllPassed)
	assert.Equal(t, summary.ReasonCodes, got.Summary.ReasonCodes)
}
