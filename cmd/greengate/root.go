package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errGateFailed signals a completed command whose verdict is a failure. The
// result has already been printed, so only the exit code is left to set.
var errGateFailed = errors.New("gate failed")

var (
	configPath   string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "greengate",
	Short: "Validation gate & checklist satisfaction engine",
	Long: `greengate compiles a task document into a validation contract and runs its
checks until they all pass, a strict checklist item fails, progress stalls, or
the iteration budget runs out.

Every run writes an append-only iteration log, a checklist timeline, and a
summary under the output directory. The exit code is 0 only when all checks
passed.

Typical flow:
  greengate compile --task task.yaml
  greengate run --contract .greengate/runs/<run-id>/contract.json
  greengate inspect .greengate/runs/<run-id>

or in one step:
  greengate gate --task task.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !validFormat(outputFormat) {
			return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errGateFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .greengate.yaml in this or a parent directory)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "Output format: text, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	// Add subcommands
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
