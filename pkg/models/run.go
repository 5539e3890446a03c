package models

// RunState is the terminal (or current) state of the gate loop.
type RunState string

const (
	// RunRunning is the state while iterations are in progress.
	RunRunning RunState = "RUNNING"
	// RunAllPassed means every check passed in one iteration.
	RunAllPassed RunState = "ALL_PASSED"
	// RunStrictAborted means a strict checklist item was unsatisfied.
	RunStrictAborted RunState = "STRICT_ABORTED"
	// RunDiagnosticAborted means the diagnostic re-run showed no improvement.
	RunDiagnosticAborted RunState = "DIAGNOSTIC_ABORTED"
	// RunMaxIterExhausted means the iteration budget ran out.
	RunMaxIterExhausted RunState = "MAX_ITER_EXHAUSTED"
	// RunAuditAborted means an audit record could not be written.
	RunAuditAborted RunState = "AUDIT_ABORTED"
)

// Valid returns true if the state is a known value.
func (s RunState) Valid() bool {
	switch s {
	case RunRunning, RunAllPassed, RunStrictAborted, RunDiagnosticAborted, RunMaxIterExhausted, RunAuditAborted:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further iterations follow this state.
func (s RunState) Terminal() bool {
	return s != RunRunning && s.Valid()
}

// String returns the string representation of the state.
func (s RunState) String() string {
	return string(s)
}

// Trend classifies the net progress of a run.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Follow-up actions suggested by a failed run.
const (
	SuggestInspectIterationLog = "inspect_iteration_log"
	SuggestSwitchStrategy      = "switch_strategy"
)

// StrategySwitchStalled is recorded when stagnation triggers the diagnostic branch.
const StrategySwitchStalled = "stalled_no_progress"

// IterationRecord captures one pass of the loop.
type IterationRecord struct {
	Iteration             int             `json:"iteration"`
	Results               []CheckResult   `json:"results"`
	ProgressScore         float64         `json:"progress_score"`
	ProgressDelta         float64         `json:"progress_delta"`
	NoProgressStep        bool            `json:"no_progress_step"`
	ConsecutiveNoProgress int             `json:"consecutive_no_progress"`
	ChecklistDelta        *ChecklistDelta `json:"checklist_delta,omitempty"`
}

// Passed returns the number of passing results.
func (r IterationRecord) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}
	return n
}

// ProgressSummary reduces the progress history of a run.
type ProgressSummary struct {
	Initial            float64   `json:"initial"`
	Final              float64   `json:"final"`
	Best               float64   `json:"best"`
	NetDelta           float64   `json:"net_delta"`
	MeanDelta          float64   `json:"mean_delta"`
	History            []float64 `json:"history"`
	ChecklistFlipCount int       `json:"checklist_flip_count"`
}

// DiagnosticResult is the outcome of the single diagnostic re-run.
type DiagnosticResult struct {
	DiagnosticProgress     float64 `json:"diagnostic_progress"`
	DiagnosticDelta        float64 `json:"diagnostic_delta"`
	DiagnosticPassedChecks int     `json:"diagnostic_passed_checks"`
}

// NoProgressCounters reports stagnation bookkeeping.
type NoProgressCounters struct {
	MaxConsecutiveNoProgress int `json:"max_consecutive_no_progress"`
	TriggerThreshold         int `json:"trigger_threshold"`
}

// SelfCorrectionScores echoes the validator scores from a correction rollout.
type SelfCorrectionScores struct {
	ValidatorScoreO1 any `json:"validator_score_o1"`
	ValidatorScoreO2 any `json:"validator_score_o2"`
	ImprovementDelta any `json:"improvement_delta"`
}

// RunSummary is the terminal record of a run.
type RunSummary struct {
	RunID                  string               `json:"run_id"`
	AllPassed              bool                 `json:"all_passed"`
	Aborted                bool                 `json:"aborted"`
	StrictEarlyTerminated  bool                 `json:"strict_early_terminated"`
	TerminalState          RunState             `json:"terminal_state"`
	Iterations             int                  `json:"iterations"`
	MaxIterations          int                  `json:"max_iterations"`
	LogPath                string               `json:"log_path"`
	ChecklistTimelineRef   string               `json:"checklist_timeline_ref"`
	ChecklistState         []ChecklistItem      `json:"checklist_state"`
	ChecklistDeltas        []ChecklistDelta     `json:"checklist_deltas"`
	StrictFailItemIDs      []string             `json:"strict_fail_item_ids"`
	GateScores             GateScores           `json:"gate_scores"`
	ProgressDelta          float64              `json:"progress_delta"`
	ProgressDeltaAggregate float64              `json:"progress_delta_aggregate"`
	ProgressTrend          Trend                `json:"progress_trend"`
	ProgressSummary        ProgressSummary      `json:"progress_summary"`
	ReasonCodes            []string             `json:"reason_codes"`
	StrategySwitchTag      string               `json:"strategy_switch_tag"`
	DiagnosticRan          bool                 `json:"diagnostic_ran"`
	DiagnosticResult       *DiagnosticResult    `json:"diagnostic_result,omitempty"`
	NoProgressCounters     NoProgressCounters   `json:"no_progress_counters"`
	SelfCorrectionScores   SelfCorrectionScores `json:"self_correction_scores"`
	SuggestedNext          []string             `json:"suggested_next"`
}

// ChecklistSatisfied reports whether every item ended satisfied. An empty
// checklist counts as satisfied.
func (s *RunSummary) ChecklistSatisfied() bool {
	for _, item := range s.ChecklistState {
		if item.Status != ItemSatisfied {
			return false
		}
	}
	return true
}
