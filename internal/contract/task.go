package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Task is a loosely typed task document. Keys follow the task authoring
// format (checks, checklist_contract, trust_level, ...).
type Task map[string]any

// ErrNotObject is returned when a task document is not a key/value object.
var ErrNotObject = errors.New("task document must be an object")

// LoadTask reads a task document from a JSON or YAML file. The format is
// chosen by extension; .yaml and .yml are YAML, everything else is JSON.
func LoadTask(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseTaskYAML(data)
	default:
		return ParseTaskJSON(data)
	}
}

// ParseTaskJSON parses a JSON task document.
func ParseTaskJSON(data []byte) (Task, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse task JSON: %w", err)
	}
	return toTask(raw)
}

// ParseTaskYAML parses a YAML task document.
func ParseTaskYAML(data []byte) (Task, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse task YAML: %w", err)
	}
	return toTask(raw)
}

func toTask(raw any) (Task, error) {
	m, ok := normalizeValue(raw).(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Task(m), nil
}

// lookup returns the first present key.
func (t Task) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := t[k]; ok {
			return v, true
		}
	}
	return nil, false
}
