package models

import "sort"

// Reason codes form a fixed taxonomy of "<category>/<cause>" strings so callers
// can branch on the cause of a failure without parsing prose.
const (
	// Compile-time contract violations.
	ReasonTestsNotRun                 = "validation_failed/tests_not_run"
	ReasonContractMissingChecks       = "schema_violation/validation_contract_missing_checks"
	ReasonChecklistMissingRequired    = "schema_violation/checklist_contract_missing_required"
	ReasonChecklistInvalidStrictness  = "schema_violation/checklist_invalid_strictness"
	ReasonChecklistDuplicateItemID    = "schema_violation/checklist_duplicate_item_id"
	ReasonChecklistDependencyCycle    = "schema_violation/checklist_dependency_cycle"
	ReasonMemoryBundleMissingRequired = "schema_violation/memory_update_bundle_missing_required"
	ReasonMemoryCommitMissing         = "validation_failed/memory_commit_missing"
	ReasonMemoryProvenanceMissing     = "validation_failed/memory_provenance_missing"
	ReasonDefragRelocationMissing     = "validation_failed/defrag_relocation_missing"
	ReasonWorktreeRequired            = "validation_failed/worktree_required_for_memory_write"
	ReasonEvidenceInvalidType         = "schema_violation/evidence_object_invalid_type"
	ReasonEvidenceMissingRequired     = "schema_violation/evidence_object_missing_required"
	ReasonEvidenceConfidenceRange     = "validation_failed/evidence_confidence_out_of_range"
	ReasonRolloutMissingRequired      = "schema_violation/correction_rollout_missing_required"
	ReasonRolloutMismatchedSignature  = "schema_violation/correction_rollout_mismatched_task_signature"
	ReasonSelfCorrectionMissingO2     = "validation_failed/self_correction_missing_o2"
	ReasonSelfCorrectionUnscored      = "validation_failed/self_correction_unscored"
	ReasonSelfCorrectionRegressed     = "validation_failed/self_correction_regressed"
	ReasonMemoryAgentMissing          = "validation_failed/letta_agent_missing"
	ReasonMemorySyncMissing           = "validation_failed/letta_sync_missing"
	ReasonMemorySyncFailed            = "integration_degraded/letta_sync_failed"
	ReasonMemoryStale                 = "integration_degraded/letta_stale"
	ReasonPublishWithoutGate          = "validation_failed/letta_publish_without_gate"
	ReasonPublishWithoutGovernor      = "policy_violation/letta_publish_without_governor"
	ReasonDirectMemoryWriteForbidden  = "policy_violation/letta_direct_memory_write_forbidden"
	ReasonPointerInvalidType          = "schema_violation/letta_pointer_invalid_type"
	ReasonPointerMissingRequired      = "schema_violation/letta_pointer_missing_required"
	ReasonPointerHashMissing          = "validation_failed/letta_pointer_hash_missing"
	ReasonPointerStaleSync            = "validation_failed/letta_pointer_stale_sync"
	ReasonMissingExecutionProfile     = "validation_failed/missing_execution_profile"
	ReasonMissingExecutionAuditRef    = "validation_failed/missing_execution_audit_ref"

	// Run-time outcomes.
	ReasonChecklistStrictFailed    = "validation_failed/checklist_strict_failed"
	ReasonChecklistEvidenceMissing = "evidence_missing/checklist_evidence_missing"
	ReasonNoProgressLoop           = "no_progress/no_progress_loop"
	ReasonDiagnosticNoImprovement  = "validation_failed/diagnostic_no_improvement"
	ReasonChecksFailed             = "validation_failed/checks_failed"
	ReasonFailClosedAbort          = "validation_failed/fail_closed_abort"
	ReasonMaxIterationsReached     = "validation_failed/max_iterations_reached"
	ReasonAuditLogWriteFailed      = "integration_degraded/audit_log_write_failed"
)

// ReasonCodes accumulates reason codes, ignoring duplicates while keeping
// first-seen order.
type ReasonCodes struct {
	codes []string
	seen  map[string]struct{}
}

// Add appends codes that have not been seen yet.
func (r *ReasonCodes) Add(codes ...string) {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	for _, code := range codes {
		if _, ok := r.seen[code]; ok {
			continue
		}
		r.seen[code] = struct{}{}
		r.codes = append(r.codes, code)
	}
}

// Has reports whether code was added.
func (r *ReasonCodes) Has(code string) bool {
	_, ok := r.seen[code]
	return ok
}

// Len returns the number of distinct codes.
func (r *ReasonCodes) Len() int {
	return len(r.codes)
}

// List returns the codes in insertion order. It never returns nil.
func (r *ReasonCodes) List() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

// Sorted returns the codes in lexical order. It never returns nil.
func (r *ReasonCodes) Sorted() []string {
	out := r.List()
	sort.Strings(out)
	return out
}
