package contract

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// Phase selects which declaration rules apply.
type Phase int

const (
	// PhaseCompile applies the rules checked before a contract is emitted.
	PhaseCompile Phase = iota
	// PhaseRun applies the rules checked after a gate run finishes.
	PhaseRun
)

// String returns the phase name.
func (p Phase) String() string {
	if p == PhaseRun {
		return "run"
	}
	return "compile"
}

var (
	memoryBundleRequiredKeys = []string{"worktree_path", "candidate_changes", "evidence_refs", "commit_message", "reason_codes"}
	evidenceRequiredKeys     = []string{"source", "location", "span", "confidence"}
	pointerRequiredKeys      = []string{"provider", "folder_id", "document_id", "source_uri", "content_hash", "synced_at_unix", "provenance_tag"}
)

// declValidate validates decoded declaration records.
var declValidate *validator.Validate

func init() {
	declValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = declValidate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// memoryBundle is the typed view of a memory_update_bundle.
type memoryBundle struct {
	WorktreePath              string `mapstructure:"worktree_path" validate:"nonblank"`
	CommitMessage             string `mapstructure:"commit_message" validate:"nonblank"`
	EvidenceRefs              []any  `mapstructure:"evidence_refs" validate:"min=1"`
	DefragRun                 bool   `mapstructure:"defrag_run"`
	RelocationPointers        []any  `mapstructure:"relocation_pointers"`
	DirectExternalMemoryWrite bool   `mapstructure:"direct_external_memory_write"`
	ExternalWriteCommitted    bool   `mapstructure:"external_write_committed"`
}

// contextPointer is the typed view of an external context pointer record.
type contextPointer struct {
	ContentHash  string   `mapstructure:"content_hash" validate:"nonblank"`
	SyncedAtUnix *float64 `mapstructure:"-" validate:"omitnil,gt=0"`
	Stale        any      `mapstructure:"stale"`
	IsStale      any      `mapstructure:"is_stale"`
}

// correctionRollout is the typed view of a correction_rollout declaration.
type correctionRollout struct {
	RunID         string `mapstructure:"run_id" validate:"nonblank"`
	TaskSignature string `mapstructure:"task_signature" validate:"nonblank"`
	Attempt1      string `mapstructure:"attempt_1" validate:"nonblank"`
	Attempt2      string `mapstructure:"attempt_2" validate:"nonblank"`
}

// failedFields returns the struct field names that failed validation.
func failedFields(err error) map[string]bool {
	failed := make(map[string]bool)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			failed[fe.Field()] = true
		}
	}
	return failed
}

// ExtractDeclarations reads the auxiliary declarations from a task document.
func ExtractDeclarations(task Task) models.Declarations {
	audit := asMap(task["execution_audit"])

	trust := models.TrustLevelTrusted
	if v, ok := task["trust_level"]; ok {
		trust = stringify(v)
	} else if v, ok := audit["trust_level"]; ok {
		trust = stringify(v)
	}

	evidence, _ := task.lookup("evidence_objects", "evidence_refs")

	return models.Declarations{
		TaskTag:                      stringify(task["task_tag"]),
		MemoryUpdateBundle:           asMap(task["memory_update_bundle"]),
		ExecutionAudit:               audit,
		EvidenceObjects:              asList(evidence),
		ExternalContextPointers:      asList(task["external_context_pointers"]),
		ExternalContextPolicy:        asMap(task["external_context_policy"]),
		CorrectionRollout:            asMap(task["correction_rollout"]),
		TrustLevel:                   trust,
		StrictEvidenceObjects:        flag(task["strict_evidence_objects"]),
		RequestedProfile:             stringify(task["requested_profile"]),
		AuditRef:                     stringify(task["audit_ref"]),
		MemoryRuntimeEnabled:         flag(task["letta_runtime_enabled"]),
		MemoryAgentID:                strings.TrimSpace(stringify(task["letta_agent_id"])),
		MemorySyncStatus:             strings.ToLower(strings.TrimSpace(stringify(task["letta_sync_status"]))),
		MemorySyncStale:              flag(task["letta_sync_stale"]),
		MemoryPublishAttempted:       flag(task["letta_publish_attempted"]),
		ValidatorPassed:              flag(task["validator_passed"]),
		GovernorApproved:             flag(task["governor_approved"]),
		DirectExternalMemoryWrite:    flag(task["direct_external_memory_write"]),
		ExternalMemoryWriteCommitted: flag(task["external_memory_write_committed"]),
	}
}

// ValidateDeclarations checks the auxiliary declarations and returns reason
// codes in the order they were found. Rules only apply when their trigger is
// present: a memory-write task, strict evidence, an untrusted trust level, and
// so on.
func ValidateDeclarations(d models.Declarations, phase Phase) []string {
	var codes models.ReasonCodes

	codes.Add(validateMemoryBundle(d, phase)...)
	if d.StrictEvidenceObjects {
		codes.Add(validateEvidenceObjects(d.EvidenceObjects)...)
	}
	if len(d.CorrectionRollout) > 0 {
		codes.Add(validateCorrectionRollout(d.CorrectionRollout, phase)...)
	}
	codes.Add(validateMemoryRuntime(d)...)
	if len(d.ExternalContextPointers) > 0 {
		codes.Add(validateContextPointers(d.ExternalContextPointers)...)
	}
	if directWriteForbidden(d) {
		codes.Add(models.ReasonDirectMemoryWriteForbidden)
	}
	codes.Add(validateExecutionTrust(d)...)

	return codes.List()
}

func decodeBundle(raw map[string]any) (memoryBundle, map[string]bool) {
	var b memoryBundle
	if err := decodeLoose(raw, &b); err != nil {
		return b, map[string]bool{"WorktreePath": true, "CommitMessage": true, "EvidenceRefs": true}
	}
	return b, failedFields(declValidate.Struct(b))
}

func validateMemoryBundle(d models.Declarations, phase Phase) []string {
	raw := d.MemoryUpdateBundle
	var codes []string

	switch phase {
	case PhaseCompile:
		if !d.MemoryWriteRequired() {
			return nil
		}
		for _, key := range memoryBundleRequiredKeys {
			if _, ok := raw[key]; !ok {
				codes = append(codes, models.ReasonMemoryBundleMissingRequired)
				break
			}
		}
		b, failed := decodeBundle(raw)
		if len(raw) > 0 && failed["CommitMessage"] {
			codes = append(codes, models.ReasonMemoryCommitMissing)
		}
		if len(raw) > 0 && failed["EvidenceRefs"] {
			codes = append(codes, models.ReasonMemoryProvenanceMissing)
		}
		if b.DefragRun && len(b.RelocationPointers) == 0 {
			codes = append(codes, models.ReasonDefragRelocationMissing)
		}
	case PhaseRun:
		if len(raw) == 0 {
			return nil
		}
		b, failed := decodeBundle(raw)
		if failed["EvidenceRefs"] {
			codes = append(codes, models.ReasonMemoryProvenanceMissing)
		}
		if failed["CommitMessage"] {
			codes = append(codes, models.ReasonMemoryCommitMissing)
		}
		if failed["WorktreePath"] {
			codes = append(codes, models.ReasonWorktreeRequired)
		}
		if b.DefragRun && len(b.RelocationPointers) == 0 {
			codes = append(codes, models.ReasonDefragRelocationMissing)
		}
	}
	return codes
}

// MemoryBundleValid reports whether a required memory bundle names a
// worktree, provenance and a commit message.
func MemoryBundleValid(d models.Declarations) bool {
	if !d.MemoryWriteRequired() {
		return true
	}
	_, failed := decodeBundle(d.MemoryUpdateBundle)
	return !failed["WorktreePath"] && !failed["EvidenceRefs"] && !failed["CommitMessage"]
}

func validateEvidenceObjects(objects []any) []string {
	var codes models.ReasonCodes
	for _, entry := range objects {
		obj := asMap(entry)
		if obj == nil {
			codes.Add(models.ReasonEvidenceInvalidType)
			continue
		}
		for _, key := range evidenceRequiredKeys {
			if _, ok := obj[key]; !ok {
				codes.Add(models.ReasonEvidenceMissingRequired)
				break
			}
		}
		if confidence, ok := number(obj["confidence"]); !ok {
			codes.Add(models.ReasonEvidenceInvalidType)
		} else if err := declValidate.Var(confidence, "gte=0,lte=1"); err != nil {
			codes.Add(models.ReasonEvidenceConfidenceRange)
		}
		if loc, ok := obj["location"]; ok && asMap(loc) == nil {
			codes.Add(models.ReasonEvidenceInvalidType)
		}
	}
	return codes.List()
}

func validateContextPointers(pointers []any) []string {
	var codes models.ReasonCodes
	for _, entry := range pointers {
		raw := asMap(entry)
		if raw == nil {
			codes.Add(models.ReasonPointerInvalidType)
			continue
		}
		for _, key := range pointerRequiredKeys {
			if _, ok := raw[key]; !ok {
				codes.Add(models.ReasonPointerMissingRequired)
				break
			}
		}
		if provider, ok := raw["provider"]; ok && provider != nil && provider != any("letta") {
			codes.Add(models.ReasonPointerInvalidType)
		}

		var p contextPointer
		if err := decodeLoose(raw, &p); err != nil {
			codes.Add(models.ReasonPointerInvalidType)
			continue
		}
		if synced, ok := number(raw["synced_at_unix"]); ok {
			p.SyncedAtUnix = &synced
		} else {
			codes.Add(models.ReasonPointerInvalidType)
		}

		failed := failedFields(declValidate.Struct(p))
		if failed["ContentHash"] {
			codes.Add(models.ReasonPointerHashMissing)
		}
		if failed["SyncedAtUnix"] || p.Stale == true || p.IsStale == true {
			codes.Add(models.ReasonPointerStaleSync)
		}
	}
	return codes.List()
}

func validateCorrectionRollout(raw map[string]any, phase Phase) []string {
	var codes models.ReasonCodes

	var r correctionRollout
	if err := decodeLoose(raw, &r); err != nil {
		return []string{models.ReasonRolloutMissingRequired}
	}
	failed := failedFields(declValidate.Struct(r))
	if len(failed) > 0 {
		codes.Add(models.ReasonRolloutMissingRequired)
	}
	if _, ok := raw["attempt_2"]; ok && failed["Attempt2"] {
		codes.Add(models.ReasonSelfCorrectionMissingO2)
	}
	if sig, ok := raw["task_signature"]; ok {
		if _, isString := sig.(string); !isString {
			codes.Add(models.ReasonRolloutMismatchedSignature)
		}
	}

	if phase == PhaseRun {
		o1, ok1 := number(raw["validator_score_o1"])
		o2, ok2 := number(raw["validator_score_o2"])
		switch {
		case !ok1 || !ok2:
			codes.Add(models.ReasonSelfCorrectionUnscored)
		case o1 >= 1.0 && o2 < 1.0:
			codes.Add(models.ReasonSelfCorrectionRegressed)
		}
	}
	return codes.List()
}

func validateMemoryRuntime(d models.Declarations) []string {
	var codes []string
	if d.MemoryRuntimeEnabled && d.MemoryAgentID == "" {
		codes = append(codes, models.ReasonMemoryAgentMissing)
	}
	if d.MemoryRuntimeEnabled && d.MemorySyncStatus == "" {
		codes = append(codes, models.ReasonMemorySyncMissing)
	}
	if d.MemoryRuntimeEnabled && d.MemorySyncStatus == "degraded" {
		codes = append(codes, models.ReasonMemorySyncFailed)
	}
	if d.MemorySyncStale {
		codes = append(codes, models.ReasonMemoryStale)
	}
	if d.MemoryPublishAttempted && !d.ValidatorPassed {
		codes = append(codes, models.ReasonPublishWithoutGate)
	}
	if d.MemoryPublishAttempted && !d.GovernorApproved {
		codes = append(codes, models.ReasonPublishWithoutGovernor)
	}
	return codes
}

// directWriteForbidden reports a direct external memory write that the
// policy does not allow. Writes are forbidden unless the policy opts out.
func directWriteForbidden(d models.Declarations) bool {
	forbidden := true
	if v, ok := d.ExternalContextPolicy["direct_external_writes_forbidden"]; ok {
		forbidden = flag(v)
	}
	if !forbidden {
		return false
	}

	write := d.DirectExternalMemoryWrite || d.ExternalMemoryWriteCommitted
	if len(d.MemoryUpdateBundle) > 0 {
		var b memoryBundle
		if err := decodeLoose(d.MemoryUpdateBundle, &b); err == nil {
			write = write || b.DirectExternalMemoryWrite || b.ExternalWriteCommitted
		}
	}
	return write
}

// executionProfile returns the declared execution profile, preferring the
// execution_audit block.
func executionProfile(d models.Declarations) string {
	if v, ok := d.ExecutionAudit["execution_profile"]; ok {
		return strings.TrimSpace(stringify(v))
	}
	return strings.TrimSpace(d.RequestedProfile)
}

// auditRef returns the declared audit reference, preferring the
// execution_audit block.
func auditRef(d models.Declarations) string {
	if v, ok := d.ExecutionAudit["audit_ref"]; ok {
		return strings.TrimSpace(stringify(v))
	}
	return strings.TrimSpace(d.AuditRef)
}

func validateExecutionTrust(d models.Declarations) []string {
	if !d.Untrusted() {
		return nil
	}
	var codes []string
	if executionProfile(d) == "" {
		codes = append(codes, models.ReasonMissingExecutionProfile)
	}
	if auditRef(d) == "" {
		codes = append(codes, models.ReasonMissingExecutionAuditRef)
	}
	return codes
}

// ExecutionAuditValid reports whether an untrusted run declares its profile
// and audit reference.
func ExecutionAuditValid(d models.Declarations) bool {
	return len(validateExecutionTrust(d)) == 0
}
