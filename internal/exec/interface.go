// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// Result is the captured outcome of one command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and captures stdout and stderr separately.
	// A non-zero exit status is reported through Result.ExitCode, not as an
	// error. The error is set only when the command could not be started or
	// was killed because ctx ended. The working directory is set to workDir
	// if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (Result, error)

	// RunShell executes a shell command through "<shell> -c".
	RunShell(ctx context.Context, workDir string, command string) (Result, error)
}
