package verification

import (
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// ProjectType identifies the toolchain of a repository.
type ProjectType string

const (
	ProjectGo      ProjectType = "go"
	ProjectRust    ProjectType = "rust"
	ProjectPython  ProjectType = "python"
	ProjectNode    ProjectType = "node"
	ProjectUnknown ProjectType = "unknown"
)

// ProjectContext holds the check commands conventional for a repository.
// Empty commands were not detected.
type ProjectContext struct {
	Type         ProjectType
	BuildCommand string
	TestCommand  string
	LintCommand  string
}

// DetectProjectContext inspects marker files in repoPath.
func DetectProjectContext(repoPath string) *ProjectContext {
	ctx := &ProjectContext{Type: ProjectUnknown}

	switch {
	case fileExistsAtPath(filepath.Join(repoPath, "go.mod")):
		ctx.Type = ProjectGo
		ctx.BuildCommand = "go build ./..."
		ctx.TestCommand = "go test ./..."
		ctx.LintCommand = "go vet ./..."

	case fileExistsAtPath(filepath.Join(repoPath, "Cargo.toml")):
		ctx.Type = ProjectRust
		ctx.BuildCommand = "cargo build"
		ctx.TestCommand = "cargo test"
		ctx.LintCommand = "cargo clippy"

	case fileExistsAtPath(filepath.Join(repoPath, "pyproject.toml")),
		fileExistsAtPath(filepath.Join(repoPath, "setup.py")),
		fileExistsAtPath(filepath.Join(repoPath, "requirements.txt")):
		ctx.Type = ProjectPython
		if dirExists(filepath.Join(repoPath, "tests")) || fileExistsAtPath(filepath.Join(repoPath, "pytest.ini")) {
			ctx.TestCommand = "pytest"
		} else {
			ctx.TestCommand = "python -m unittest discover"
		}
		ctx.BuildCommand = "python -m compileall -q ."
		if fileExistsAtPath(filepath.Join(repoPath, ".ruff.toml")) || hasExecutable("ruff") {
			ctx.LintCommand = "ruff check ."
		}

	case fileExistsAtPath(filepath.Join(repoPath, "package.json")):
		ctx.Type = ProjectNode
		pkg, _ := os.ReadFile(filepath.Join(repoPath, "package.json"))
		content := string(pkg)

		switch {
		case strings.Contains(content, `"test"`):
			ctx.TestCommand = "npm test"
		case strings.Contains(content, "vitest"):
			ctx.TestCommand = "npx vitest run"
		case strings.Contains(content, "jest"):
			ctx.TestCommand = "npx jest"
		}
		if strings.Contains(content, `"build"`) {
			ctx.BuildCommand = "npm run build"
		} else if fileExistsAtPath(filepath.Join(repoPath, "tsconfig.json")) {
			ctx.BuildCommand = "npx tsc --noEmit"
		}
		if strings.Contains(content, "eslint") {
			ctx.LintCommand = "npx eslint ."
		}
	}

	return ctx
}

// Checks returns the detected commands as checks, in build, test, lint order.
func (p *ProjectContext) Checks() []models.Check {
	var checks []models.Check
	add := func(name, command string) {
		if command == "" {
			return
		}
		checks = append(checks, models.Check{Name: name, Command: command, PassCondition: models.PassExitCodeZero})
	}
	add("build", p.BuildCommand)
	add("test", p.TestCommand)
	add("lint", p.LintCommand)
	return checks
}

// StarterTask is a task document seeded from a ProjectContext.
type StarterTask struct {
	Checks            []StarterCheck   `yaml:"checks"`
	ChecklistContract StarterChecklist `yaml:"checklist_contract"`
	MaxIterations     int              `yaml:"max_iterations"`
	StopConditions    []string         `yaml:"stop_conditions"`
}

// StarterChecklist is the checklist_contract object of a StarterTask.
type StarterChecklist struct {
	Items []StarterItem `yaml:"items"`
}

// StarterCheck is one check of a StarterTask.
type StarterCheck struct {
	Name          string `yaml:"name"`
	Command       string `yaml:"command"`
	PassCondition string `yaml:"pass_condition"`
}

// StarterItem is one checklist item of a StarterTask.
type StarterItem struct {
	ItemID        string   `yaml:"item_id"`
	Question      string   `yaml:"question"`
	Strictness    string   `yaml:"strictness"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
	PassWhenCheck string   `yaml:"pass_when_check"`
}

var starterQuestions = map[string]string{
	"build": "Does the project build?",
	"test":  "Do the tests pass?",
	"lint":  "Is the linter clean?",
}

// StarterTask builds a task with one checklist item per detected check. The
// build item is strict and every later item depends on it. Projects with no
// detected commands get a placeholder check.
func (p *ProjectContext) StarterTask(maxIterations int) *StarterTask {
	checks := p.Checks()
	if len(checks) == 0 {
		checks = []models.Check{{Name: "test", Command: "echo 'replace with your test command' && exit 1", PassCondition: models.PassExitCodeZero}}
	}

	task := &StarterTask{MaxIterations: maxIterations, StopConditions: []string{"all_checks_pass"}}
	first := ""
	for _, c := range checks {
		task.Checks = append(task.Checks, StarterCheck{Name: c.Name, Command: c.Command, PassCondition: string(c.PassCondition)})

		item := StarterItem{
			ItemID:        c.Name,
			Question:      starterQuestions[c.Name],
			Strictness:    string(models.StrictnessNormal),
			PassWhenCheck: c.Name,
		}
		if c.Name == "build" {
			item.Strictness = string(models.StrictnessStrict)
		}
		if first != "" {
			item.DependsOn = []string{first}
		} else {
			first = c.Name
		}
		task.ChecklistContract.Items = append(task.ChecklistContract.Items, item)
	}
	return task
}

// YAML encodes the task in the authoring format read by contract.LoadTask.
func (t *StarterTask) YAML() ([]byte, error) {
	data, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode starter task: %w", err)
	}
	return data, nil
}

// fileExistsAtPath checks if a file exists at the given path.
func fileExistsAtPath(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// hasExecutable checks if an executable is available in PATH.
func hasExecutable(name string) bool {
	_, err := osexec.LookPath(name)
	return err == nil
}
