package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/greengate/internal/config"
	"github.com/ShayCichocki/greengate/internal/logging"
	"github.com/ShayCichocki/greengate/internal/verification"
)

// starterTaskFile is the task document written next to the config.
const starterTaskFile = "task.yaml"

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a .greengate.yaml template",
	Long: `Init writes a .greengate.yaml holding every default into the target
directory (default: current directory), creates the artifact and log
directories, and writes a starter task.yaml whose checks match the detected
project type (go.mod, Cargo.toml, pyproject.toml, package.json).

Existing files are left alone unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		return runInit(cmd, root)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .greengate.yaml and task.yaml")
}

func runInit(cmd *cobra.Command, root string) error {
	w := cmd.OutOrStdout()

	absPath, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	configFile := filepath.Join(absPath, config.ProjectConfigFile)
	if err := config.WriteTemplate(configFile, initForce); err != nil {
		printStatus(w, "✗", fmt.Sprintf("%s not written", config.ProjectConfigFile), color.FgRed)
		return err
	}
	printStatus(w, "✓", fmt.Sprintf("Created %s", config.ProjectConfigFile), color.FgGreen)

	cfg := config.Default()
	runsDir := filepath.Join(absPath, cfg.Output.Dir)
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", cfg.Output.Dir, err)
	}
	logsDir := filepath.Dir(logging.DefaultFile(absPath))
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}
	printStatus(w, "✓", "Created .greengate directory structure", color.FgGreen)

	taskFile := filepath.Join(absPath, starterTaskFile)
	if _, err := os.Stat(taskFile); err == nil && !initForce {
		printStatus(w, "⚠", fmt.Sprintf("%s exists, left unchanged", starterTaskFile), color.FgYellow)
	} else {
		project := verification.DetectProjectContext(absPath)
		starter := project.StarterTask(cfg.Loop.MaxIterations)
		data, err := starter.YAML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(taskFile, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", starterTaskFile, err)
		}
		printStatus(w, "✓", fmt.Sprintf("Created %s with %d checks (%s project)", starterTaskFile, len(starter.Checks), project.Type), color.FgGreen)
	}

	fmt.Fprintf(w, "\n%s greengate initialization complete!\n\n", color.GreenString("✓"))
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintf(w, "  1. Review the checks and checklist items in %s\n", starterTaskFile)
	fmt.Fprintln(w, "  2. Run the gate:")
	fmt.Fprintln(w, "     greengate gate --task task.yaml")
	fmt.Fprintln(w, "  3. Browse the result:")
	fmt.Fprintln(w, "     greengate inspect .greengate/runs/<run-id>")
	return nil
}
