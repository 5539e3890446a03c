package verification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/greengate/internal/exec"
	"github.com/ShayCichocki/greengate/pkg/models"
)

// fakeRunner returns a canned result for every shell command.
type fakeRunner struct {
	result   exec.Result
	err      error
	commands []string
	deadline time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, workDir, name string, args ...string) (exec.Result, error) {
	return f.RunShell(ctx, workDir, name)
}

func (f *fakeRunner) RunShell(ctx context.Context, workDir, command string) (exec.Result, error) {
	f.commands = append(f.commands, command)
	if dl, ok := ctx.Deadline(); ok {
		f.deadline = time.Until(dl)
	}
	return f.result, f.err
}

func TestCheckRunner_Execute(t *testing.T) {
	tests := []struct {
		name       string
		condition  models.PassCondition
		result     exec.Result
		err        error
		wantPassed bool
		wantError  bool
	}{
		{
			name:       "exit zero passes",
			condition:  models.PassExitCodeZero,
			result:     exec.Result{ExitCode: 0},
			wantPassed: true,
		},
		{
			name:      "exit nonzero fails",
			condition: models.PassExitCodeZero,
			result:    exec.Result{ExitCode: 1},
		},
		{
			name:       "stdout token passes despite exit code",
			condition:  models.StdoutContains("READY"),
			result:     exec.Result{ExitCode: 2, Stdout: []byte("status: READY")},
			wantPassed: true,
		},
		{
			name:      "runner error fails check",
			condition: models.StdoutContains("READY"),
			result:    exec.Result{ExitCode: -1, Stdout: []byte("READY")},
			err:       errors.New("command killed: context deadline exceeded"),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRunner{result: tt.result, err: tt.err}
			runner := NewCheckRunnerWithExec("", fake, RunnerConfig{})

			got := runner.Execute(context.Background(), models.Check{
				Name:          "unit",
				Command:       "make test",
				PassCondition: tt.condition,
			})

			if got.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", got.Passed, tt.wantPassed)
			}
			if (got.Error != "") != tt.wantError {
				t.Errorf("Error = %q, wantError %v", got.Error, tt.wantError)
			}
			if got.Name != "unit" || got.Command != "make test" {
				t.Errorf("result identity = %q/%q", got.Name, got.Command)
			}
			if got.ExitCode != tt.result.ExitCode {
				t.Errorf("ExitCode = %d, want %d", got.ExitCode, tt.result.ExitCode)
			}
		})
	}
}

func TestCheckRunner_TruncatesOutputButMatchesFullStdout(t *testing.T) {
	long := strings.Repeat("x", 1000) + "TOKEN"
	fake := &fakeRunner{result: exec.Result{Stdout: []byte(long), Stderr: []byte(long)}}
	runner := NewCheckRunnerWithExec("", fake, RunnerConfig{})

	got := runner.Execute(context.Background(), models.Check{
		Name:          "big",
		Command:       "gen",
		PassCondition: models.StdoutContains("TOKEN"),
	})

	if !got.Passed {
		t.Error("token beyond the truncation limit should still pass")
	}
	if len(got.Stdout) != DefaultOutputLimit || len(got.Stderr) != DefaultOutputLimit {
		t.Errorf("len(Stdout)=%d len(Stderr)=%d, want %d", len(got.Stdout), len(got.Stderr), DefaultOutputLimit)
	}
}

func TestCheckRunner_AppliesTimeout(t *testing.T) {
	fake := &fakeRunner{}
	runner := NewCheckRunnerWithExec("", fake, RunnerConfig{Timeout: time.Minute})
	runner.Execute(context.Background(), models.Check{Name: "a", Command: "true"})

	if fake.deadline <= 0 || fake.deadline > time.Minute {
		t.Errorf("deadline = %v, want within 1m", fake.deadline)
	}
}

func TestCheckRunner_RealShell(t *testing.T) {
	runner := NewCheckRunner(t.TempDir(), RunnerConfig{Timeout: 5 * time.Second})

	pass := runner.Execute(context.Background(), models.Check{Name: "ok", Command: "echo done", PassCondition: models.StdoutContains("done")})
	if !pass.Passed {
		t.Errorf("echo done should pass: %+v", pass)
	}

	fail := runner.Execute(context.Background(), models.Check{Name: "bad", Command: "exit 4", PassCondition: models.PassExitCodeZero})
	if fail.Passed || fail.ExitCode != 4 {
		t.Errorf("exit 4 result = %+v", fail)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"shorter than limit", "abc", 5, "abc"},
		{"exact limit", "abcde", 5, "abcde"},
		{"cut", "abcdef", 3, "abc"},
		{"multibyte runes", "héllo", 2, "hé"},
		{"zero limit", "abc", 0, ""},
		{"negative disables", "abc", -1, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}
