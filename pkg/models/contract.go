package models

import "errors"

// FailurePolicyFailClosed is the only supported failure policy.
const FailurePolicyFailClosed = "fail_closed"

// Trust levels that require an execution profile and audit reference.
const (
	TrustLevelTrusted            = "trusted"
	TrustLevelUntrusted          = "untrusted"
	TrustLevelGeneratedUntrusted = "generated_untrusted"
)

// ErrNoChecks is returned when a contract has nothing to execute.
var ErrNoChecks = errors.New("contract has no checks")

// Declarations holds the auxiliary task declarations carried from compile time
// into the run so both phases validate the same values.
type Declarations struct {
	TaskTag                 string         `json:"task_tag,omitempty"`
	MemoryUpdateBundle      map[string]any `json:"memory_update_bundle"`
	ExecutionAudit          map[string]any `json:"execution_audit"`
	EvidenceObjects         []any          `json:"evidence_objects"`
	ExternalContextPointers []any          `json:"external_context_pointers"`
	ExternalContextPolicy   map[string]any `json:"external_context_policy"`
	CorrectionRollout       map[string]any `json:"correction_rollout"`
	TrustLevel              string         `json:"trust_level"`
	StrictEvidenceObjects   bool           `json:"strict_evidence_objects"`
	RequestedProfile        string         `json:"requested_profile,omitempty"`
	AuditRef                string         `json:"audit_ref,omitempty"`

	// External memory runtime flags.
	MemoryRuntimeEnabled         bool   `json:"letta_runtime_enabled"`
	MemoryAgentID                string `json:"letta_agent_id"`
	MemorySyncStatus             string `json:"letta_sync_status"`
	MemorySyncStale              bool   `json:"letta_sync_stale"`
	MemoryPublishAttempted       bool   `json:"letta_publish_attempted"`
	ValidatorPassed              bool   `json:"validator_passed"`
	GovernorApproved             bool   `json:"governor_approved"`
	DirectExternalMemoryWrite    bool   `json:"direct_external_memory_write"`
	ExternalMemoryWriteCommitted bool   `json:"external_memory_write_committed"`
}

// Untrusted reports whether the declared trust level requires execution auditing.
func (d Declarations) Untrusted() bool {
	return d.TrustLevel == TrustLevelUntrusted || d.TrustLevel == TrustLevelGeneratedUntrusted
}

// MemoryWriteRequired reports whether the memory-write bundle must be validated.
func (d Declarations) MemoryWriteRequired() bool {
	return d.TaskTag == "memory_write" || len(d.MemoryUpdateBundle) > 0
}

// Contract is the immutable output of compilation. The runner only reads it.
type Contract struct {
	RunID             string            `json:"run_id"`
	Checks            []Check           `json:"checks"`
	ChecklistContract ChecklistContract `json:"checklist_contract"`
	Declarations
	MaxIterations  int        `json:"max_iterations"`
	StopConditions []string   `json:"stop_conditions"`
	FailurePolicy  string     `json:"failure_policy"`
	EvidencePaths  []string   `json:"evidence_paths"`
	GateScores     GateScores `json:"gate_scores"`
	ProgressDelta  float64    `json:"progress_delta"`
	ReasonCodes    []string   `json:"reason_codes"`
}

// Validate checks the minimum a contract needs to be run. A missing
// max_iterations is filled in by the runner.
func (c *Contract) Validate() error {
	if len(c.Checks) == 0 {
		return ErrNoChecks
	}
	return nil
}

// Items returns the checklist items.
func (c *Contract) Items() []ChecklistItem {
	return c.ChecklistContract.Items
}
