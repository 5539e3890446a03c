package models

import "sort"

// GateScore is a single weighted gate outcome.
type GateScore struct {
	Passed bool    `json:"passed"`
	Weight float64 `json:"weight"`
}

// GateScores maps gate names to their outcome.
type GateScores map[string]GateScore

// Credit returns the weighted sum of passed gates. It is not normalized:
// compile weights total 1.1.
func (g GateScores) Credit() float64 {
	var total float64
	for _, name := range g.Names() {
		if score := g[name]; score.Passed {
			total += score.Weight
		}
	}
	return total
}

// Names returns gate names in sorted order.
func (g GateScores) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
