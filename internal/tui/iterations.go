package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/greengate/internal/audit"
	"github.com/ShayCichocki/greengate/pkg/models"
)

// IterationView gathers every record of one iteration.
type IterationView struct {
	Iteration        int
	Checks           []models.CheckResult
	DiagnosticChecks []models.CheckResult
	Progress         *audit.Progress
	StrategySwitch   *audit.StrategySwitch
	DiagnosticResult *models.DiagnosticResult
	Timeline         *audit.TimelineRecord
}

// Passed returns the number of passing checks in the iteration proper.
func (v IterationView) Passed() int {
	n := 0
	for _, c := range v.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// BuildIterations groups a run's records by iteration, in iteration order.
func BuildIterations(run *audit.Run) []IterationView {
	byIter := make(map[int]*IterationView)
	get := func(i int) *IterationView {
		v, ok := byIter[i]
		if !ok {
			v = &IterationView{Iteration: i}
			byIter[i] = v
		}
		return v
	}

	for _, ev := range run.Events {
		v := get(ev.Iteration)
		switch ev.Event {
		case audit.EventCheck:
			if ev.CheckResult != nil {
				v.Checks = append(v.Checks, *ev.CheckResult)
			}
		case audit.EventDiagnosticCheck:
			if ev.CheckResult != nil {
				v.DiagnosticChecks = append(v.DiagnosticChecks, *ev.CheckResult)
			}
		case audit.EventProgressDelta:
			v.Progress = ev.Progress
		case audit.EventStrategySwitch:
			v.StrategySwitch = ev.StrategySwitch
		case audit.EventDiagnosticResult:
			v.DiagnosticResult = ev.DiagnosticResult
		}
	}
	for i := range run.Timeline {
		rec := run.Timeline[i]
		get(rec.Iteration).Timeline = &rec
	}

	out := make([]IterationView, 0, len(byIter))
	for _, v := range byIter {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Iteration < out[j].Iteration })
	return out
}

// Row renders the table cells for an iteration.
func (v IterationView) Row() []string {
	score, delta := "-", "-"
	if v.Progress != nil {
		score = fmt.Sprintf("%.3f", v.Progress.ProgressScore)
		delta = fmt.Sprintf("%+.3f", v.Progress.ProgressDelta)
	}
	flipped, strict := "-", "-"
	if v.Timeline != nil {
		flipped = joinOrDash(v.Timeline.ChecklistDelta.FlippedToSatisfied)
		strict = joinOrDash(v.Timeline.ChecklistDelta.StrictFailItemIDs)
	}
	note := ""
	if v.DiagnosticResult != nil {
		note = fmt.Sprintf("diagnostic %+.3f", v.DiagnosticResult.DiagnosticDelta)
	}
	return []string{
		fmt.Sprintf("%d", v.Iteration),
		fmt.Sprintf("%d/%d", v.Passed(), len(v.Checks)),
		score,
		delta,
		flipped,
		strict,
		note,
	}
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ",")
}
