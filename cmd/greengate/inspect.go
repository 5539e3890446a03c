package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/greengate/internal/audit"
	"github.com/ShayCichocki/greengate/internal/tui"
	"github.com/ShayCichocki/greengate/pkg/models"
)

var inspectPlain bool

var inspectCmd = &cobra.Command{
	Use:   "inspect DIR",
	Short: "Browse a finished run",
	Long: `Inspect opens an interactive view of a run directory: one row per iteration
with its checks, progress and checklist flips.

With --plain, or with -o json|yaml, it prints instead of opening the viewer.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := audit.ReadRun(args[0])
		if err != nil {
			return err
		}

		if outputFormat == formatText && !inspectPlain {
			return tui.Inspect(run)
		}
		report := newInspectReport(run)
		return render(cmd.OutOrStdout(), outputFormat, report, func(w io.Writer) { printIterations(w, run) })
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectPlain, "plain", false, "Print the iteration table instead of opening the viewer")
}

// inspectReport is the machine-readable form of a run directory.
type inspectReport struct {
	Dir      string                 `json:"dir"`
	Summary  *models.RunSummary     `json:"summary"`
	Events   []audit.Event          `json:"events"`
	Timeline []audit.TimelineRecord `json:"timeline"`
}

func newInspectReport(run *audit.Run) inspectReport {
	return inspectReport{Dir: run.Dir, Summary: run.Summary, Events: run.Events, Timeline: run.Timeline}
}

// printIterations prints one tab-aligned row per iteration followed by the
// verdict, if the run finished.
func printIterations(w io.Writer, run *audit.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tui.Headers(), "\t"))
	for _, v := range tui.BuildIterations(run) {
		fmt.Fprintln(tw, strings.Join(v.Row(), "\t"))
	}
	tw.Flush()

	if run.Summary == nil {
		fmt.Fprintln(w, "no summary.json: run did not finish")
		return
	}
	fmt.Fprintln(w)
	printSummary(w, run.Summary)
}
