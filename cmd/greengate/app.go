package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/greengate/internal/audit"
	"github.com/ShayCichocki/greengate/internal/config"
	"github.com/ShayCichocki/greengate/internal/contract"
	"github.com/ShayCichocki/greengate/internal/exec"
	"github.com/ShayCichocki/greengate/internal/logging"
	"github.com/ShayCichocki/greengate/internal/loop"
	"github.com/ShayCichocki/greengate/internal/metrics"
	"github.com/ShayCichocki/greengate/internal/telemetry"
	"github.com/ShayCichocki/greengate/internal/verification"
	"github.com/ShayCichocki/greengate/internal/version"
	"github.com/ShayCichocki/greengate/pkg/models"
)

// app carries the loaded configuration and logger of one command invocation.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	out    io.Writer
	format string
}

// newApp loads configuration and opens the logger for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		File:   cfg.Logging.File,
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "file", cfg.File)
	return &app{cfg: cfg, logger: logger, out: cmd.OutOrStdout(), format: outputFormat}, nil
}

// Close releases the log file, if any.
func (a *app) Close() {
	a.logger.Close()
}

func (a *app) render(v any, text func(io.Writer)) error {
	return render(a.out, a.format, v, text)
}

func (a *app) outputDir(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Output.Dir
}

func compileOptions(requireEvidence bool) []contract.Option {
	if !requireEvidence {
		return nil
	}
	return []contract.Option{contract.WithItemValidator(contract.RequireEvidence())}
}

func newRunID(flag string) string {
	if flag != "" {
		return flag
	}
	return uuid.NewString()
}

// compile compiles the task at taskPath and, on success, saves the contract
// under outputDir/runID. opts are applied after the configured defaults.
func (a *app) compile(taskPath, runID, outputDir string, opts ...contract.Option) (*contract.Result, error) {
	task, err := contract.LoadTask(taskPath)
	if err != nil {
		return nil, err
	}

	compiler := contract.New(append([]contract.Option{
		contract.WithDefaultMaxIterations(a.cfg.Loop.MaxIterations),
		contract.WithLogger(a.logger.Logger),
	}, opts...)...)
	res := compiler.Compile(task, runID)
	if !res.OK {
		return res, nil
	}

	path, err := verification.NewContractStorage(filepath.Join(outputDir, runID)).Save(res.Contract)
	if err != nil {
		return nil, err
	}
	res.ContractPath = path
	return res, nil
}

// checkRunner builds the shell check executor from the checks config.
func (a *app) checkRunner() (*verification.CheckRunner, error) {
	env, err := exec.LoadEnvFile(a.cfg.Checks.EnvFile)
	if err != nil {
		return nil, err
	}
	runner := exec.NewRunner(exec.WithShell(a.cfg.Checks.Shell), exec.WithEnv(env))
	return verification.NewCheckRunnerWithExec(a.cfg.Checks.WorkDir, runner, verification.RunnerConfig{
		Timeout:     a.cfg.Checks.Timeout,
		OutputLimit: a.cfg.Checks.OutputLimit,
		Logger:      a.logger.Logger,
	}), nil
}

// run executes the contract with shell checks and tracing as configured.
func (a *app) run(ctx context.Context, ct *models.Contract, outputDir string) (*models.RunSummary, error) {
	executor, err := a.checkRunner()
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(a.cfg.Tracing.File, version.Get())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("flush traces failed", "error", err)
		}
	}()

	return a.runWith(ctx, ct, executor, outputDir)
}

// runWith runs the loop, writing artifacts to outputDir/<run id>.
func (a *app) runWith(ctx context.Context, ct *models.Contract, executor verification.CheckExecutor, outputDir string) (*models.RunSummary, error) {
	runDir := filepath.Join(outputDir, ct.RunID)
	emitter, err := audit.NewFileEmitter(runDir)
	if errors.Is(err, audit.ErrRunExists) {
		return nil, fmt.Errorf("%w (pass a new --run-id)", err)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := emitter.Close(); err != nil {
			a.logger.Warn("close audit files failed", "dir", runDir, "error", err)
		}
	}()

	recorder := metrics.NewRecorder()
	ctrl, err := loop.New(ct, executor,
		loop.WithEmitter(emitter),
		loop.WithMetrics(recorder),
		loop.WithLogger(a.logger.Logger),
		loop.WithStagnationThreshold(a.cfg.Loop.StagnationThreshold),
		loop.WithDefaultMaxIterations(a.cfg.Loop.MaxIterations),
	)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	summary := ctrl.Run(ctx)

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			a.logger.Warn("write metrics failed", "path", path, "error", err)
		}
	}
	return summary, nil
}

// gateReport is the combined output of compile and run.
type gateReport struct {
	Compile *contract.Result   `json:"compile"`
	Summary *models.RunSummary `json:"summary,omitempty"`
}

// Passed reports whether compilation succeeded and every check passed.
func (r *gateReport) Passed() bool {
	return r.Compile.OK && r.Summary != nil && r.Summary.AllPassed
}

// gate compiles the task and, when that succeeds, runs the contract.
// A nil executor runs checks through the configured shell.
func (a *app) gate(ctx context.Context, taskPath, runID, outputDir string, executor verification.CheckExecutor, opts ...contract.Option) (*gateReport, error) {
	// Refuse before compile so an earlier run's contract.json is left intact.
	if err := audit.CheckFresh(filepath.Join(outputDir, runID)); err != nil {
		return nil, fmt.Errorf("%w (pass a new --run-id)", err)
	}
	res, err := a.compile(taskPath, runID, outputDir, opts...)
	if err != nil {
		return nil, err
	}
	report := &gateReport{Compile: res}
	if !res.OK {
		return report, nil
	}

	if executor == nil {
		report.Summary, err = a.run(ctx, res.Contract, outputDir)
	} else {
		report.Summary, err = a.runWith(ctx, res.Contract, executor, outputDir)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
