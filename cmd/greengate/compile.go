package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/greengate/internal/contract"
)

var (
	compileTaskPath  string
	compileRunID     string
	compileOutputDir string

	compileRequireEvidence bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a task document into a validation contract",
	Long: `Compile validates a task document (JSON or YAML) and writes contract.json
to <output-dir>/<run-id>/.

Any schema or declaration violation fails closed: no contract is written, the
reason codes are printed, and the command exits 1.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.compile(compileTaskPath, newRunID(compileRunID), a.outputDir(compileOutputDir), compileOptions(compileRequireEvidence)...)
		if err != nil {
			return err
		}
		if err := a.render(res, func(w io.Writer) { printCompileResult(w, res) }); err != nil {
			return err
		}
		if !res.OK {
			return errGateFailed
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&compileTaskPath, "task", "", "Task document (JSON or YAML)")
	compileCmd.Flags().StringVar(&compileRunID, "run-id", "", "Run id (default: random UUID)")
	compileCmd.Flags().StringVar(&compileOutputDir, "output-dir", "", "Artifact directory (default: output.dir)")
	compileCmd.Flags().BoolVar(&compileRequireEvidence, "require-evidence", false, "Reject checklist items without evidence_required")
	_ = compileCmd.MarkFlagRequired("task")
}

// printCompileResult prints a compile result for humans.
func printCompileResult(w io.Writer, res *contract.Result) {
	if !res.OK {
		printStatus(w, "✗", fmt.Sprintf("Contract %s failed closed", res.RunID), color.FgRed)
		for _, code := range res.ReasonCodes {
			fmt.Fprintf(w, "    %s\n", code)
		}
		fmt.Fprintf(w, "  next: %s\n", strings.Join(res.SuggestedNext, ", "))
		return
	}

	printStatus(w, "✓", fmt.Sprintf("Contract %s compiled", res.RunID), color.FgGreen)
	fmt.Fprintf(w, "  checks: %d  checklist items: %d  progress delta: %.3f\n",
		res.CheckCount, res.ChecklistItemCount, res.ProgressDelta)
	fmt.Fprintf(w, "  gate score: %.2f\n", res.GateScores.Credit())
	if res.ContractPath != "" {
		fmt.Fprintf(w, "  contract: %s\n", res.ContractPath)
	}
}
