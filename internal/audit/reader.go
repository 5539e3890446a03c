package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// maxLineSize bounds a single JSONL record; timeline records carry the whole
// checklist.
const maxLineSize = 16 << 20

// Run is a finished run read back from its directory.
type Run struct {
	Dir      string
	Events   []Event
	Timeline []TimelineRecord
	Summary  *models.RunSummary
}

// ReadRun loads all artifacts of a run directory. A missing summary is not
// an error; the run may have been interrupted.
func ReadRun(dir string) (*Run, error) {
	events, err := ReadEvents(filepath.Join(dir, IterationLogFile))
	if err != nil {
		return nil, err
	}
	timeline, err := ReadTimeline(filepath.Join(dir, TimelineFile))
	if err != nil {
		return nil, err
	}
	summary, err := ReadSummary(filepath.Join(dir, SummaryFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return &Run{Dir: dir, Events: events, Timeline: timeline, Summary: summary}, nil
}

// ReadEvents parses an iteration log.
func ReadEvents(path string) ([]Event, error) {
	return readLines[Event](path)
}

// ReadTimeline parses a checklist timeline.
func ReadTimeline(path string) ([]TimelineRecord, error) {
	return readLines[TimelineRecord](path)
}

// ReadSummary parses summary.json. The returned error satisfies
// os.IsNotExist when the file is absent.
func ReadSummary(path string) (*models.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var summary models.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return &summary, nil
}

func readLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}
