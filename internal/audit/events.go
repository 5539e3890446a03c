// Package audit writes the append-only trail of a gate run.
package audit

import (
	"time"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// EventType represents the type of iteration log record.
type EventType string

const (
	// EventCheck records one check execution.
	EventCheck EventType = "check"
	// EventProgressDelta records the progress score of an iteration.
	EventProgressDelta EventType = "progress_delta"
	// EventStrategySwitch records that stagnation triggered the diagnostic branch.
	EventStrategySwitch EventType = "strategy_switch"
	// EventDiagnosticCheck records one check execution of the diagnostic re-run.
	EventDiagnosticCheck EventType = "diagnostic_check"
	// EventDiagnosticResult records the outcome of the diagnostic re-run.
	EventDiagnosticResult EventType = "diagnostic_result"
)

// DiagnosticPolicy names the stagnation policy in strategy_switch records.
const DiagnosticPolicy = "switch_then_diagnose_then_abort_if_flat"

// Progress is the payload of a progress_delta record.
type Progress struct {
	ProgressScore         float64 `json:"progress_score"`
	ProgressDelta         float64 `json:"progress_delta"`
	NoProgressStep        bool    `json:"no_progress_step"`
	ConsecutiveNoProgress int     `json:"consecutive_no_progress"`
}

// StrategySwitch is the payload of a strategy_switch record.
type StrategySwitch struct {
	StrategySwitchTag string `json:"strategy_switch_tag"`
	Policy            string `json:"policy"`
}

// Event is one iteration log record. Exactly one payload is set, matching
// Event; its fields are flattened into the record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration"`
	Event     EventType `json:"event"`

	*models.CheckResult
	*Progress
	*StrategySwitch
	*models.DiagnosticResult
}

// TimelineRecord is one checklist timeline record: the full checklist state
// after an iteration and that iteration's delta.
type TimelineRecord struct {
	Timestamp      time.Time              `json:"timestamp"`
	RunID          string                 `json:"run_id"`
	Iteration      int                    `json:"iteration"`
	ChecklistState []models.ChecklistItem `json:"checklist_state"`
	ChecklistDelta models.ChecklistDelta  `json:"checklist_delta"`
}
