// Package checklist tracks checklist item satisfaction across loop iterations.
package checklist

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ShayCichocki/greengate/internal/graph"
	"github.com/ShayCichocki/greengate/pkg/models"
)

// ErrCyclicChecklist is returned when the items cannot be ordered.
var ErrCyclicChecklist = errors.New("checklist dependencies are cyclic")

// Snapshot is the checklist state after one iteration. Snapshots are values:
// the machine never modifies one after returning it.
type Snapshot struct {
	Iteration int
	// Items are in declaration order.
	Items []models.ChecklistItem
	Delta models.ChecklistDelta
}

// Status returns the status of an item, or "" when unknown.
func (s Snapshot) Status(itemID string) models.ItemStatus {
	for _, item := range s.Items {
		if item.ItemID == itemID {
			return item.Status
		}
	}
	return ""
}

// Clone returns a deep copy of the snapshot items.
func (s Snapshot) Clone() []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(s.Items))
	for i, item := range s.Items {
		out[i] = item.Clone()
	}
	return out
}

// Machine recomputes item statuses from per-iteration check results.
type Machine struct {
	order   []int
	current Snapshot
	logger  *slog.Logger
}

// NewMachine prepares a machine for the items. Every item starts unsatisfied
// with no satisfied_at_step; declared statuses are informational only.
func NewMachine(items []models.ChecklistItem, logger *slog.Logger) (*Machine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	g := graph.New()
	g.SetLogger(logger)
	if err := g.Build(items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCyclicChecklist, err)
	}
	sorted, err := g.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCyclicChecklist, err)
	}

	// Repeated item IDs are evaluated together at their first position's turn.
	positions := make(map[string][]int, len(items))
	for i, item := range items {
		positions[item.ItemID] = append(positions[item.ItemID], i)
	}
	order := make([]int, 0, len(items))
	for _, id := range sorted {
		order = append(order, positions[id]...)
	}

	initial := make([]models.ChecklistItem, len(items))
	for i, item := range items {
		initial[i] = item.Clone()
		initial[i].Status = models.ItemUnsatisfied
		initial[i].SatisfiedAtStep = nil
	}

	return &Machine{
		order:   order,
		current: Snapshot{Items: initial},
		logger:  logger,
	}, nil
}

// Current returns the latest snapshot.
func (m *Machine) Current() Snapshot {
	return m.current
}

// Advance computes the next snapshot from this iteration's check results.
//
// Items are visited in dependency order. An item satisfied earlier in the run
// stays satisfied. Otherwise it is blocked when any dependency is not
// currently satisfied (unknown dependencies never are), satisfied when its
// pass_when_check passed, and unsatisfied otherwise.
func (m *Machine) Advance(iteration int, passed map[string]bool) Snapshot {
	prev := m.current.Items
	next := make([]models.ChecklistItem, len(prev))
	status := make(map[string]models.ItemStatus, len(prev))

	delta := models.ChecklistDelta{
		Iteration:            iteration,
		FlippedToSatisfied:   []string{},
		StrictFailItemIDs:    []string{},
		StrictBlockedItemIDs: []string{},
	}

	for _, idx := range m.order {
		item := prev[idx].Clone()

		switch {
		case item.Status == models.ItemSatisfied:
			// Monotonic: once proven, stays proven for the rest of the run.
		case !dependenciesSatisfied(item, status):
			item.Status = models.ItemBlocked
		case passed[item.PassWhenCheck]:
			item.Status = models.ItemSatisfied
			step := iteration
			item.SatisfiedAtStep = &step
		default:
			item.Status = models.ItemUnsatisfied
		}

		status[item.ItemID] = item.Status
		next[idx] = item
	}

	// Report in declaration order.
	for i, item := range next {
		if item.Status == models.ItemSatisfied && prev[i].Status != models.ItemSatisfied {
			delta.FlippedToSatisfied = append(delta.FlippedToSatisfied, item.ItemID)
		}
		if !item.IsStrict() {
			continue
		}
		switch item.Status {
		case models.ItemUnsatisfied:
			delta.StrictFailItemIDs = append(delta.StrictFailItemIDs, item.ItemID)
		case models.ItemBlocked:
			delta.StrictBlockedItemIDs = append(delta.StrictBlockedItemIDs, item.ItemID)
		}
	}

	m.current = Snapshot{Iteration: iteration, Items: next, Delta: delta}
	m.logger.Debug("checklist advanced",
		"iteration", iteration,
		"flipped", delta.FlippedToSatisfied,
		"strict_failed", delta.StrictFailItemIDs,
		"strict_blocked", delta.StrictBlockedItemIDs,
	)
	return m.current
}

func dependenciesSatisfied(item models.ChecklistItem, status map[string]models.ItemStatus) bool {
	for _, dep := range item.DependsOn {
		if status[dep] != models.ItemSatisfied {
			return false
		}
	}
	return true
}
