package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/joho/godotenv"
)

// DefaultShell is used by RunShell when no shell is configured.
const DefaultShell = "sh"

// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
const waitDelay = 2 * time.Second

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct {
	shell string
	env   []string
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithShell sets the shell used by RunShell.
func WithShell(shell string) Option {
	return func(r *ExecRunner) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// WithEnv appends KEY=VALUE entries to the environment of every command.
func WithEnv(env []string) Option {
	return func(r *ExecRunner) {
		r.env = append(r.env, env...)
	}
}

// NewRunner creates a new ExecRunner.
func NewRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{shell: DefaultShell}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadEnvFile reads a dotenv file and returns its entries as sorted
// KEY=VALUE pairs. An empty path yields no entries.
func LoadEnvFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}

// Run executes a command and captures stdout and stderr.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("command killed: %w", ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("start %s: %w", name, err)
	}
}

// RunShell executes a shell command through "<shell> -c".
func (r *ExecRunner) RunShell(ctx context.Context, workDir string, command string) (Result, error) {
	return r.Run(ctx, workDir, r.shell, "-c", command)
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)
