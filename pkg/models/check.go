package models

import (
	"strings"
	"time"
)

// PassCondition describes what "pass" means for a check.
// Supported forms:
//   - "exit_code_zero": the command exited with status 0
//   - "stdout_contains:<token>": stdout contains token
//
// Unknown conditions fall back to exit_code_zero.
type PassCondition string

const (
	// PassExitCodeZero requires a zero exit status.
	PassExitCodeZero PassCondition = "exit_code_zero"
	// stdoutContainsPrefix prefixes the stdout token condition.
	stdoutContainsPrefix = "stdout_contains:"
)

// StdoutContains builds a stdout_contains condition for token.
func StdoutContains(token string) PassCondition {
	return PassCondition(stdoutContainsPrefix + token)
}

// Token returns the stdout token and true when the condition is a
// stdout_contains condition.
func (p PassCondition) Token() (string, bool) {
	if !strings.HasPrefix(string(p), stdoutContainsPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(p), stdoutContainsPrefix), true
}

// Evaluate reports whether a command result satisfies the condition.
func (p PassCondition) Evaluate(exitCode int, stdout string) bool {
	if token, ok := p.Token(); ok {
		return strings.Contains(stdout, token)
	}
	return exitCode == 0
}

// Check is a single executable acceptance check.
type Check struct {
	// Name identifies the check. Checklist items reference it via pass_when_check.
	Name string `json:"name"`
	// Command is an opaque shell command.
	Command string `json:"command"`
	// PassCondition defines what passing means.
	PassCondition PassCondition `json:"pass_condition"`
}

// CheckResult is the outcome of executing one check once.
type CheckResult struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	ExitCode int    `json:"returncode"`
	// Stdout and Stderr are truncated to the configured output limit.
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Passed bool   `json:"passed"`
	// Error is set when the command could not be started or timed out.
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}
