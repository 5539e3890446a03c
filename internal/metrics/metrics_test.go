package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/greengate/pkg/models"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.IterationStarted()
	r.IterationStarted()
	r.CheckExecuted(PhaseIteration, models.CheckResult{Name: "unit", Passed: true, Duration: time.Second})
	r.CheckExecuted(PhaseIteration, models.CheckResult{Name: "unit", Passed: false})
	r.CheckExecuted(PhaseDiagnostic, models.CheckResult{Name: "unit", Passed: false})
	r.ProgressObserved(0.5)
	r.DiagnosticFinished(false)
	r.RunFinished(models.RunDiagnosticAborted)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.iterations))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.checks.WithLabelValues("unit", "pass", PhaseIteration)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.checks.WithLabelValues("unit", "fail", PhaseIteration)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.checks.WithLabelValues("unit", "fail", PhaseDiagnostic)))
	assert.Equal(t, 0.5, testutil.ToFloat64(r.progress))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.diagnostics.WithLabelValues("no_improvement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("DIAGNOSTIC_ABORTED")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.checkDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.IterationStarted()
	r.CheckExecuted(PhaseIteration, models.CheckResult{Name: "x"})
	r.ProgressObserved(1)
	r.DiagnosticFinished(true)
	r.RunFinished(models.RunAllPassed)
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.RunFinished(models.RunAllPassed)

	path := filepath.Join(t.TempDir(), "greengate.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `greengate_runs_total{state="ALL_PASSED"} 1`))
}
