package contract

import "github.com/ShayCichocki/greengate/pkg/models"

// ItemValidator is an optional per-item hook run on every normalized
// checklist item. Returned reason codes fail compilation closed.
type ItemValidator interface {
	ValidateItem(item models.ChecklistItem) []string
}

// ItemValidatorFunc adapts a function to ItemValidator.
type ItemValidatorFunc func(item models.ChecklistItem) []string

// ValidateItem calls f(item).
func (f ItemValidatorFunc) ValidateItem(item models.ChecklistItem) []string {
	return f(item)
}

// RequireEvidence rejects items that declare no required evidence.
func RequireEvidence() ItemValidator {
	return ItemValidatorFunc(func(item models.ChecklistItem) []string {
		if len(item.EvidenceRequired) == 0 {
			return []string{models.ReasonChecklistMissingRequired}
		}
		return nil
	})
}
