// Package verification executes checks and persists compiled contracts.
package verification

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/greengate/internal/exec"
	"github.com/ShayCichocki/greengate/pkg/models"
)

const (
	// DefaultTimeout bounds a single check when none is configured.
	DefaultTimeout = 10 * time.Minute
	// DefaultOutputLimit is the number of characters kept from stdout and stderr.
	DefaultOutputLimit = 800
)

// CheckExecutor runs one check and reports its outcome. Implementations never
// return an error: spawn failures and timeouts are failed results.
type CheckExecutor interface {
	Execute(ctx context.Context, check models.Check) models.CheckResult
}

// Verify CheckRunner implements CheckExecutor at compile time.
var _ CheckExecutor = (*CheckRunner)(nil)

// RunnerConfig tunes check execution.
type RunnerConfig struct {
	// Timeout is the per-check deadline. Zero uses DefaultTimeout.
	Timeout time.Duration
	// OutputLimit caps captured stdout and stderr in characters. Zero uses
	// DefaultOutputLimit, negative disables truncation.
	OutputLimit int
	Logger      *slog.Logger
}

// CheckRunner executes checks through a CommandRunner.
type CheckRunner struct {
	workDir     string
	exec        exec.CommandRunner
	timeout     time.Duration
	outputLimit int
	logger      *slog.Logger
}

// NewCheckRunner creates a check runner for the given work directory.
func NewCheckRunner(workDir string, cfg RunnerConfig) *CheckRunner {
	return NewCheckRunnerWithExec(workDir, exec.NewRunner(), cfg)
}

// NewCheckRunnerWithExec creates a check runner with a custom executor (for testing).
func NewCheckRunnerWithExec(workDir string, runner exec.CommandRunner, cfg RunnerConfig) *CheckRunner {
	r := &CheckRunner{
		workDir:     workDir,
		exec:        runner,
		timeout:     cfg.Timeout,
		outputLimit: cfg.OutputLimit,
		logger:      cfg.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.outputLimit == 0 {
		r.outputLimit = DefaultOutputLimit
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Execute runs the check command through the shell and evaluates its pass
// condition against the full stdout before truncation.
func (r *CheckRunner) Execute(ctx context.Context, check models.Check) models.CheckResult {
	result := models.CheckResult{
		Name:    check.Name,
		Command: check.Command,
	}

	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	startTime := time.Now()
	res, err := r.exec.RunShell(cmdCtx, r.workDir, check.Command)
	result.Duration = time.Since(startTime)
	result.ExitCode = res.ExitCode
	result.Stdout = Truncate(string(res.Stdout), r.outputLimit)
	result.Stderr = Truncate(string(res.Stderr), r.outputLimit)

	if err != nil {
		result.Error = err.Error()
		r.logger.Warn("check did not complete", "check", check.Name, "error", err)
		return result
	}

	result.Passed = check.PassCondition.Evaluate(res.ExitCode, string(res.Stdout))
	r.logger.Debug("check finished",
		"check", check.Name,
		"exit_code", res.ExitCode,
		"passed", result.Passed,
		"duration", result.Duration,
	)
	return result
}

// Truncate keeps at most limit characters of s. A negative limit keeps
// everything.
func Truncate(s string, limit int) string {
	if limit < 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
