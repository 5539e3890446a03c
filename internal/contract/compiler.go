package contract

import (
	"log/slog"
	"math"

	"github.com/spf13/cast"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// DefaultMaxIterations is used when neither the task nor the compiler
// configuration sets a budget.
const DefaultMaxIterations = 5

// Gate names and weights of a compiled contract.
const (
	GateChecksPresent         = "checks_present"
	GateChecklistPresent      = "checklist_present"
	GateStopConditionsPresent = "stop_conditions_present"
	GateEvidencePathsPresent  = "evidence_paths_present"
	GateMemoryBundleValid     = "memory_bundle_valid"
	GateExecutionAuditValid   = "execution_audit_valid"
)

var compileGateWeights = map[string]float64{
	GateChecksPresent:         0.4,
	GateChecklistPresent:      0.3,
	GateStopConditionsPresent: 0.1,
	GateEvidencePathsPresent:  0.1,
	GateMemoryBundleValid:     0.1,
	GateExecutionAuditValid:   0.1,
}

const (
	suggestRepair = "repair_validation_contract"
	suggestRun    = "run_until_green"

	compileFailedMessage = "validation contract is invalid; gate fails closed"
)

// Result is the outcome of one compilation. Contract is nil when OK is false.
type Result struct {
	OK                 bool              `json:"ok"`
	RunID              string            `json:"run_id"`
	Contract           *models.Contract  `json:"-"`
	ContractPath       string            `json:"contract_path,omitempty"`
	CheckCount         int               `json:"check_count"`
	ChecklistItemCount int               `json:"checklist_item_count"`
	GateScores         models.GateScores `json:"gate_scores"`
	ProgressDelta      float64           `json:"progress_delta"`
	ReasonCodes        []string          `json:"reason_codes"`
	SuggestedNext      []string          `json:"suggested_next"`
	Error              string            `json:"error,omitempty"`
}

// Compiler turns task documents into contracts.
type Compiler struct {
	defaultMaxIterations int
	validators           []ItemValidator
	logger               *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDefaultMaxIterations sets the budget used when a task sets none.
func WithDefaultMaxIterations(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.defaultMaxIterations = n
		}
	}
}

// WithItemValidator registers a per-item validator.
func WithItemValidator(v ItemValidator) Option {
	return func(c *Compiler) {
		if v != nil {
			c.validators = append(c.validators, v)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		defaultMaxIterations: DefaultMaxIterations,
		logger:               slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile validates the task and emits a contract for runID. All violations
// are collected before deciding; any reason code fails closed.
func (c *Compiler) Compile(task Task, runID string) *Result {
	checksRaw, _ := task.lookup("checks", "acceptance_tests")
	checks := normalizeChecks(checksRaw)

	checklistRaw, _ := task.lookup("checklist_contract", "checklist")
	checklist, checklistCodes := c.normalizeChecklist(checklistRaw, runID)

	decl := ExtractDeclarations(task)

	var codes models.ReasonCodes
	if len(checks) == 0 {
		codes.Add(models.ReasonTestsNotRun, models.ReasonContractMissingChecks)
	}
	codes.Add(checklistCodes...)
	codes.Add(ValidateDeclarations(decl, PhaseCompile)...)

	c.warnUnknownChecks(checks, checklist.Items)

	result := &Result{
		RunID:              runID,
		CheckCount:         len(checks),
		ChecklistItemCount: len(checklist.Items),
		ReasonCodes:        codes.Sorted(),
	}

	if codes.Len() > 0 {
		c.logger.Info("contract compilation failed closed", "run_id", runID, "reason_codes", result.ReasonCodes)
		result.GateScores = failedGateScores()
		result.SuggestedNext = []string{suggestRepair}
		result.Error = compileFailedMessage
		return result
	}

	stopConditions := []string{"all_checks_pass"}
	if v, ok := task["stop_conditions"]; ok {
		stopConditions = stringList(v)
	}

	contract := &models.Contract{
		RunID:             runID,
		Checks:            checks,
		ChecklistContract: checklist,
		Declarations:      normalizeDeclarations(decl),
		MaxIterations:     c.maxIterations(task),
		StopConditions:    stopConditions,
		FailurePolicy:     models.FailurePolicyFailClosed,
		EvidencePaths:     stringList(task["evidence_paths"]),
		GateScores: models.GateScores{
			GateChecksPresent:         gate(GateChecksPresent, true),
			GateChecklistPresent:      gate(GateChecklistPresent, len(checklist.Items) > 0),
			GateStopConditionsPresent: gate(GateStopConditionsPresent, truthy(task["stop_conditions"])),
			GateEvidencePathsPresent:  gate(GateEvidencePathsPresent, truthy(task["evidence_paths"])),
			GateMemoryBundleValid:     gate(GateMemoryBundleValid, MemoryBundleValid(decl)),
			GateExecutionAuditValid:   gate(GateExecutionAuditValid, ExecutionAuditValid(decl)),
		},
		ProgressDelta: models.Round(math.Min(1, float64(len(checks))/10), 3),
		ReasonCodes:   []string{},
	}

	c.logger.Info("contract compiled",
		"run_id", runID,
		"checks", len(checks),
		"items", len(checklist.Items),
		"max_iterations", contract.MaxIterations,
	)

	result.OK = true
	result.Contract = contract
	result.GateScores = contract.GateScores
	result.ProgressDelta = contract.ProgressDelta
	result.SuggestedNext = []string{suggestRun}
	return result
}

// maxIterations reads the task budget, falling back to the compiler default
// and clamping to at least one iteration.
func (c *Compiler) maxIterations(task Task) int {
	n := c.defaultMaxIterations
	if v, ok := task["max_iterations"]; ok {
		if parsed, err := cast.ToIntE(v); err == nil {
			n = parsed
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// warnUnknownChecks logs items whose pass_when_check names no check. Such
// items can never be satisfied.
func (c *Compiler) warnUnknownChecks(checks []models.Check, items []models.ChecklistItem) {
	names := make(map[string]bool, len(checks))
	for _, check := range checks {
		names[check.Name] = true
	}
	for _, item := range items {
		if !names[item.PassWhenCheck] {
			c.logger.Warn("checklist item references unknown check",
				"item_id", item.ItemID,
				"pass_when_check", item.PassWhenCheck,
			)
		}
	}
}

func gate(name string, passed bool) models.GateScore {
	return models.GateScore{Passed: passed, Weight: compileGateWeights[name]}
}

func failedGateScores() models.GateScores {
	scores := make(models.GateScores, len(compileGateWeights))
	for name := range compileGateWeights {
		scores[name] = gate(name, false)
	}
	return scores
}

// normalizeDeclarations replaces absent collections with empty ones so the
// serialized contract has a stable shape.
func normalizeDeclarations(d models.Declarations) models.Declarations {
	if d.MemoryUpdateBundle == nil {
		d.MemoryUpdateBundle = map[string]any{}
	}
	if d.ExecutionAudit == nil {
		d.ExecutionAudit = map[string]any{}
	}
	if d.EvidenceObjects == nil {
		d.EvidenceObjects = []any{}
	}
	if d.ExternalContextPointers == nil {
		d.ExternalContextPointers = []any{}
	}
	if d.ExternalContextPolicy == nil {
		d.ExternalContextPolicy = map[string]any{}
	}
	if d.CorrectionRollout == nil {
		d.CorrectionRollout = map[string]any{}
	}
	return d
}
