// Package tui provides the read-only terminal viewer for finished gate runs.
//
// The inspect view lists one row per iteration (checks passed, progress, and
// checklist flips) and shows the selected iteration's check output and
// checklist state in a scrollable pane.
//
// Usage:
//
//	run, err := audit.ReadRun(dir)
//	if err != nil {
//	    return err
//	}
//	return tui.Inspect(run)
//
// Keys: up/down select an iteration, tab moves focus to the detail pane,
// q or Ctrl+C quits.
package tui
