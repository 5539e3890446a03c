package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/greengate/internal/watch"
)

var (
	watchTaskPath  string
	watchOutputDir string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the gate whenever the task file changes",
	Long: `Watch runs gate once, then again each time the task file is saved. Every
run gets a fresh run id. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		w, err := watch.New([]string{watchTaskPath}, watch.WithLogger(a.logger.Logger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		outputDir := a.outputDir(watchOutputDir)
		return w.Run(ctx, func(ctx context.Context) {
			report, err := a.gate(ctx, watchTaskPath, newRunID(""), outputDir, nil)
			if err != nil {
				a.logger.Error("gate failed to run", "task", watchTaskPath, "error", err)
				return
			}
			if err := a.render(report, func(w io.Writer) { printGateReport(w, report) }); err != nil {
				a.logger.Error("print report failed", "error", err)
			}
		})
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchTaskPath, "task", "", "Task document (JSON or YAML)")
	watchCmd.Flags().StringVar(&watchOutputDir, "output-dir", "", "Artifact directory (default: output.dir)")
	_ = watchCmd.MarkFlagRequired("task")
}
