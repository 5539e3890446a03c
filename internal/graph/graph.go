// Package graph provides the dependency graph over checklist items.
package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the checklist.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents the depends_on relation between checklist items.
// Items are nodes, and edges point from an item to the items it depends on.
// A graph is built once and then only read.
type DependencyGraph struct {
	// order holds item IDs in declaration order (first occurrence wins).
	order []string
	// index maps item ID to its position in order.
	index map[string]int
	// edges maps item ID to IDs of known items it depends on.
	edges map[string][]string
	// unknown maps item ID to depends_on targets that are not in the graph.
	unknown map[string][]string
	logger  *slog.Logger
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		index:   make(map[string]int),
		edges:   make(map[string][]string),
		unknown: make(map[string][]string),
		logger:  slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the debug logger.
func (g *DependencyGraph) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Build constructs the dependency graph from checklist items. Edges to
// unknown items are kept aside rather than rejected. Returns ErrCycleDetected
// if the known edges form a cycle; the graph stays usable for inspection.
func (g *DependencyGraph) Build(items []models.ChecklistItem) error {
	g.logger.Debug("building checklist graph", "items", len(items))

	// First pass: register all items as nodes.
	for _, item := range items {
		if _, exists := g.index[item.ItemID]; exists {
			continue
		}
		g.index[item.ItemID] = len(g.order)
		g.order = append(g.order, item.ItemID)
		g.edges[item.ItemID] = nil
	}

	// Second pass: build edges from DependsOn fields of first occurrences.
	built := make(map[string]bool, len(g.order))
	for _, item := range items {
		if built[item.ItemID] {
			continue
		}
		built[item.ItemID] = true
		for _, depID := range item.DependsOn {
			if _, exists := g.index[depID]; !exists {
				g.logger.Debug("dependency on unknown item", "item_id", item.ItemID, "depends_on", depID)
				g.unknown[item.ItemID] = appendUnique(g.unknown[item.ItemID], depID)
				continue
			}
			g.edges[item.ItemID] = appendUnique(g.edges[item.ItemID], depID)
		}
	}

	if g.HasCycle() {
		g.logger.Debug("checklist graph has a cycle")
		return ErrCycleDetected
	}

	g.logger.Debug("checklist graph built", "nodes", len(g.order))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// It runs a depth-first search on an explicit stack, tracking the nodes on the
// current path separately from fully visited nodes.
func (g *DependencyGraph) HasCycle() bool {
	type frame struct {
		id   string
		next int
	}

	visited := make(map[string]bool, len(g.order))
	onStack := make(map[string]bool)

	for _, root := range g.order {
		if visited[root] {
			continue
		}
		visited[root] = true
		onStack[root] = true
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.edges[top.id]
			if top.next < len(deps) {
				depID := deps[top.next]
				top.next++
				if onStack[depID] {
					return true
				}
				if !visited[depID] {
					visited[depID] = true
					onStack[depID] = true
					stack = append(stack, frame{id: depID})
				}
				continue
			}
			delete(onStack, top.id)
			stack = stack[:len(stack)-1]
		}
	}
	return false
}

// TopologicalSort returns item IDs with every dependency before its
// dependents. Among items that are ready at the same time, declaration order
// wins, so the result is deterministic.
// Returns an error if the graph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	pending := make(map[string]int, len(g.order))
	dependents := make(map[string][]string, len(g.order))
	var ready []int

	for i, id := range g.order {
		pending[id] = len(g.edges[id])
		for _, depID := range g.edges[id] {
			dependents[depID] = append(dependents[depID], id)
		}
		if pending[id] == 0 {
			ready = append(ready, i)
		}
	}

	result := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		id := g.order[ready[0]]
		ready = ready[1:]
		result = append(result, id)

		for _, dependent := range dependents[id] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = append(ready, g.index[dependent])
				sort.Ints(ready)
			}
		}
	}

	if len(result) != len(g.order) {
		return nil, fmt.Errorf("sort %d of %d items: %w", len(result), len(g.order), ErrCycleDetected)
	}
	return result, nil
}

// Contains reports whether the item is in the graph.
func (g *DependencyGraph) Contains(itemID string) bool {
	_, ok := g.index[itemID]
	return ok
}

// Size returns the number of items in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.order)
}

// Order returns item IDs in declaration order.
func (g *DependencyGraph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// GetDependencies returns the IDs of known items that the given item depends on.
func (g *DependencyGraph) GetDependencies(itemID string) []string {
	return g.edges[itemID]
}

// GetUnknownDependencies returns depends_on targets that name no item.
func (g *DependencyGraph) GetUnknownDependencies(itemID string) []string {
	return g.unknown[itemID]
}

// GetDependents returns the IDs of items that depend on the given item, in
// declaration order.
func (g *DependencyGraph) GetDependents(itemID string) []string {
	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == itemID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
