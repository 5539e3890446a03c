package models

// ItemStatus represents the satisfaction state of a checklist item.
type ItemStatus string

const (
	// ItemUnsatisfied indicates the item's check has not passed.
	ItemUnsatisfied ItemStatus = "unsatisfied"
	// ItemSatisfied indicates the item has been proven during the run.
	ItemSatisfied ItemStatus = "satisfied"
	// ItemBlocked indicates at least one dependency is not satisfied.
	ItemBlocked ItemStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemUnsatisfied, ItemSatisfied, ItemBlocked:
		return true
	default:
		return false
	}
}

// Strictness controls how an unsatisfied item affects the run.
type Strictness string

const (
	// StrictnessStrict items halt the run as soon as they are unsatisfied.
	StrictnessStrict Strictness = "strict"
	// StrictnessNormal items are retried until the loop ends.
	StrictnessNormal Strictness = "normal"
)

// Valid returns true if the strictness is a known value.
func (s Strictness) Valid() bool {
	return s == StrictnessStrict || s == StrictnessNormal
}

// ChecklistItem is a named acceptance condition.
type ChecklistItem struct {
	ItemID           string     `json:"item_id"`
	Question         string     `json:"question"`
	EvidenceRequired []string   `json:"evidence_required"`
	Strictness       Strictness `json:"strictness"`
	// DependsOn lists item IDs that must be satisfied first.
	DependsOn []string   `json:"depends_on"`
	Status    ItemStatus `json:"status"`
	// SatisfiedAtStep is the iteration where the item first became satisfied.
	SatisfiedAtStep *int     `json:"satisfied_at_step"`
	EvidenceRefs    []string `json:"evidence_refs"`
	// PassWhenCheck names the check that proves this item.
	PassWhenCheck string `json:"pass_when_check"`
}

// IsStrict reports whether the item is strict.
func (i ChecklistItem) IsStrict() bool {
	return i.Strictness == StrictnessStrict
}

// Clone returns a deep copy of the item.
func (i ChecklistItem) Clone() ChecklistItem {
	out := i
	out.EvidenceRequired = cloneStrings(i.EvidenceRequired)
	out.DependsOn = cloneStrings(i.DependsOn)
	out.EvidenceRefs = cloneStrings(i.EvidenceRefs)
	if i.SatisfiedAtStep != nil {
		step := *i.SatisfiedAtStep
		out.SatisfiedAtStep = &step
	}
	return out
}

// ChecklistContract is the compiled checklist.
type ChecklistContract struct {
	RunID             string          `json:"run_id"`
	Items             []ChecklistItem `json:"items"`
	TerminationPolicy string          `json:"termination_policy"`
	ReasonCodes       []string        `json:"reason_codes"`
	Version           string          `json:"version"`
}

// ChecklistDelta describes what changed in one iteration.
type ChecklistDelta struct {
	Iteration            int      `json:"iteration"`
	FlippedToSatisfied   []string `json:"flipped_to_satisfied"`
	StrictFailItemIDs    []string `json:"strict_fail_item_ids"`
	StrictBlockedItemIDs []string `json:"strict_blocked_item_ids"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
