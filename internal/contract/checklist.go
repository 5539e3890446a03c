package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/greengate/internal/graph"
	"github.com/ShayCichocki/greengate/pkg/models"
)

const (
	defaultTerminationPolicy = "strict_gate"
	defaultChecklistVersion  = "1.0.0"
)

// normalizeChecklist validates raw checklist items and returns the canonical
// checklist with the reason codes it produced. Violations are accumulated,
// never short-circuited.
func (c *Compiler) normalizeChecklist(raw any, runID string) (models.ChecklistContract, []string) {
	var codes models.ReasonCodes
	checklist := models.ChecklistContract{
		RunID:             runID,
		Items:             []models.ChecklistItem{},
		TerminationPolicy: defaultTerminationPolicy,
		Version:           defaultChecklistVersion,
	}

	if raw == nil {
		checklist.ReasonCodes = []string{}
		return checklist, nil
	}
	m := asMap(raw)
	if m == nil {
		// A bare list or scalar is not a checklist; dropping it would leave
		// its strict items unenforced.
		codes.Add(models.ReasonChecklistMissingRequired)
		checklist.ReasonCodes = codes.Sorted()
		return checklist, checklist.ReasonCodes
	}
	if v, ok := m["termination_policy"]; ok {
		checklist.TerminationPolicy = stringify(v)
	}
	if v, ok := m["version"]; ok {
		checklist.Version = stringify(v)
	}

	seen := make(map[string]bool)
	for i, entry := range asList(m["items"]) {
		item, itemCodes, ok := normalizeItem(entry, i+1)
		codes.Add(itemCodes...)
		if !ok {
			continue
		}
		if seen[item.ItemID] {
			codes.Add(models.ReasonChecklistDuplicateItemID)
			continue
		}
		seen[item.ItemID] = true

		for _, v := range c.validators {
			codes.Add(v.ValidateItem(item)...)
		}
		checklist.Items = append(checklist.Items, item)
	}

	g := graph.New()
	g.SetLogger(c.logger)
	if err := g.Build(checklist.Items); errors.Is(err, graph.ErrCycleDetected) {
		codes.Add(models.ReasonChecklistDependencyCycle)
	}

	checklist.ReasonCodes = codes.Sorted()
	return checklist, checklist.ReasonCodes
}

// normalizeItem canonicalizes one raw checklist entry. It reports false when
// the entry must be rejected.
func normalizeItem(entry any, position int) (models.ChecklistItem, []string, bool) {
	m := asMap(entry)
	if m == nil {
		return models.ChecklistItem{}, []string{models.ReasonChecklistMissingRequired}, false
	}

	itemID := fmt.Sprintf("item-%03d", position)
	if v, ok := m["item_id"]; ok {
		itemID = strings.TrimSpace(stringify(v))
	}
	question := strings.TrimSpace(stringify(m["question"]))
	if itemID == "" || question == "" {
		return models.ChecklistItem{}, []string{models.ReasonChecklistMissingRequired}, false
	}

	var codes []string
	strictness := models.StrictnessNormal
	if v, ok := m["strictness"]; ok {
		strictness = models.Strictness(strings.TrimSpace(stringify(v)))
		if !strictness.Valid() {
			codes = append(codes, models.ReasonChecklistInvalidStrictness)
			strictness = models.StrictnessNormal
		}
	}

	status := models.ItemStatus(strings.TrimSpace(stringify(m["status"])))
	if !status.Valid() {
		status = models.ItemUnsatisfied
	}

	var satisfiedAt *int
	if step, ok := integer(m["satisfied_at_step"]); ok {
		satisfiedAt = &step
	}

	passWhen := strings.TrimSpace(stringify(m["pass_when_check"]))
	if passWhen == "" {
		passWhen = itemID
	}

	return models.ChecklistItem{
		ItemID:           itemID,
		Question:         question,
		EvidenceRequired: stringList(m["evidence_required"]),
		Strictness:       strictness,
		DependsOn:        stringList(m["depends_on"]),
		Status:           status,
		SatisfiedAtStep:  satisfiedAt,
		EvidenceRefs:     stringList(m["evidence_refs"]),
		PassWhenCheck:    passWhen,
	}, codes, true
}
