package main

import (
	"io"

	"github.com/spf13/cobra"
)

var (
	gateTaskPath  string
	gateRunID     string
	gateOutputDir string

	gateRequireEvidence bool
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Compile a task and run it in one step",
	Long: `Gate is compile followed by run. A task that fails compilation is never run.
Exits 0 only when every check passed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.gate(cmd.Context(), gateTaskPath, newRunID(gateRunID), a.outputDir(gateOutputDir), nil, compileOptions(gateRequireEvidence)...)
		if err != nil {
			return err
		}
		if err := a.render(report, func(w io.Writer) { printGateReport(w, report) }); err != nil {
			return err
		}
		if !report.Passed() {
			return errGateFailed
		}
		return nil
	},
}

func init() {
	gateCmd.Flags().StringVar(&gateTaskPath, "task", "", "Task document (JSON or YAML)")
	gateCmd.Flags().StringVar(&gateRunID, "run-id", "", "Run id (default: random UUID)")
	gateCmd.Flags().StringVar(&gateOutputDir, "output-dir", "", "Artifact directory (default: output.dir)")
	gateCmd.Flags().BoolVar(&gateRequireEvidence, "require-evidence", false, "Reject checklist items without evidence_required")
	_ = gateCmd.MarkFlagRequired("task")
}

func printGateReport(w io.Writer, r *gateReport) {
	printCompileResult(w, r.Compile)
	if r.Summary != nil {
		printSummary(w, r.Summary)
	}
}
