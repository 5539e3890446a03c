package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/greengate/internal/verification"
	"github.com/ShayCichocki/greengate/pkg/models"
)

var (
	runContractPath string
	runRunID        string
	runOutputDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a compiled contract until green or a stop condition",
	Long: `Run executes the contract's checks in order, once per iteration, until:
  - every check passes (exit 0)
  - a strict checklist item stays unsatisfied
  - progress stalls and a diagnostic re-run shows no improvement
  - the iteration budget is exhausted

Artifacts go to <output-dir>/<run-id>/: iteration_log.jsonl,
checklist_timeline.jsonl and summary.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ct, err := verification.LoadContract(runContractPath)
		if err != nil {
			return err
		}
		if runRunID != "" || ct.RunID == "" {
			ct.RunID = newRunID(runRunID)
		}

		summary, err := a.run(cmd.Context(), ct, a.outputDir(runOutputDir))
		if err != nil {
			return err
		}
		if err := a.render(summary, func(w io.Writer) { printSummary(w, summary) }); err != nil {
			return err
		}
		if !summary.AllPassed {
			return errGateFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runContractPath, "contract", "", "Compiled contract.json")
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "Run id (default: the contract's run id)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Artifact directory (default: output.dir)")
	_ = runCmd.MarkFlagRequired("contract")
}

// printSummary prints a run summary for humans.
func printSummary(w io.Writer, s *models.RunSummary) {
	if s.AllPassed {
		printStatus(w, "✓", fmt.Sprintf("Run %s passed (%s)", s.RunID, s.TerminalState), color.FgGreen)
	} else {
		printStatus(w, "✗", fmt.Sprintf("Run %s failed (%s)", s.RunID, s.TerminalState), color.FgRed)
	}

	fmt.Fprintf(w, "  iterations: %d/%d  progress: %.3f -> %.3f (%s)\n",
		s.Iterations, s.MaxIterations,
		s.ProgressSummary.Initial, s.ProgressSummary.Final, s.ProgressTrend)
	fmt.Fprintf(w, "  gate score: %.2f\n", s.GateScores.Credit())

	if len(s.ChecklistState) > 0 {
		satisfied := 0
		for _, item := range s.ChecklistState {
			if item.Status == models.ItemSatisfied {
				satisfied++
			}
		}
		fmt.Fprintf(w, "  checklist: %d/%d satisfied\n", satisfied, len(s.ChecklistState))
	}
	if len(s.StrictFailItemIDs) > 0 {
		fmt.Fprintf(w, "  strict failures: %s\n", strings.Join(s.StrictFailItemIDs, ", "))
	}
	if s.DiagnosticRan && s.DiagnosticResult != nil {
		fmt.Fprintf(w, "  diagnostic: delta %+.3f (%s)\n", s.DiagnosticResult.DiagnosticDelta, s.StrategySwitchTag)
	}
	if len(s.ReasonCodes) > 0 {
		fmt.Fprintln(w, "  reasons:")
		for _, code := range s.ReasonCodes {
			fmt.Fprintf(w, "    %s\n", code)
		}
	}
	if len(s.SuggestedNext) > 0 {
		fmt.Fprintf(w, "  next: %s\n", strings.Join(s.SuggestedNext, ", "))
	}
	if s.LogPath != "" {
		fmt.Fprintf(w, "  log: %s\n", s.LogPath)
	}
}
