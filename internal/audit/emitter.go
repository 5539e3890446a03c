package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// File names inside a run directory.
const (
	IterationLogFile = "iteration_log.jsonl"
	TimelineFile     = "checklist_timeline.jsonl"
	SummaryFile      = "summary.json"
)

// Emitter receives the audit trail of one run.
type Emitter interface {
	// Emit appends one iteration log record.
	Emit(ev Event) error
	// EmitTimeline appends one checklist timeline record.
	EmitTimeline(rec TimelineRecord) error
	// WriteSummary persists the terminal summary.
	WriteSummary(summary *models.RunSummary) error
	// LogPath is the location of the iteration log, or "" when not on disk.
	LogPath() string
	// TimelinePath is the location of the checklist timeline, or "" when not on disk.
	TimelinePath() string
}

// Verify implementations at compile time.
var (
	_ Emitter = (*FileEmitter)(nil)
	_ Emitter = (*MemoryEmitter)(nil)
)

// ErrRunExists is returned when a run directory already holds audit logs.
var ErrRunExists = errors.New("run directory already holds audit logs")

// FileEmitter writes JSONL streams into a run directory. A directory holds
// exactly one run: both streams are created fresh and only appended to.
type FileEmitter struct {
	dir      string
	log      *os.File
	timeline *os.File
}

// NewFileEmitter creates the run directory and opens both streams.
func NewFileEmitter(dir string) (*FileEmitter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	logPath := filepath.Join(dir, IterationLogFile)
	logFile, err := createLog(logPath)
	if err != nil {
		return nil, err
	}
	timelineFile, err := createLog(filepath.Join(dir, TimelineFile))
	if err != nil {
		logFile.Close()
		os.Remove(logPath)
		return nil, err
	}

	return &FileEmitter{dir: dir, log: logFile, timeline: timelineFile}, nil
}

// CheckFresh returns ErrRunExists when dir already holds either audit log.
func CheckFresh(dir string) error {
	for _, name := range []string{IterationLogFile, TimelineFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrRunExists, path)
		}
	}
	return nil
}

func createLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return f, nil
}

// Emit appends one iteration log record.
func (e *FileEmitter) Emit(ev Event) error {
	return writeLine(e.log, ev)
}

// EmitTimeline appends one checklist timeline record.
func (e *FileEmitter) EmitTimeline(rec TimelineRecord) error {
	return writeLine(e.timeline, rec)
}

// WriteSummary writes summary.json.
func (e *FileEmitter) WriteSummary(summary *models.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, SummaryFile), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// LogPath returns the iteration log path.
func (e *FileEmitter) LogPath() string {
	return e.log.Name()
}

// TimelinePath returns the checklist timeline path.
func (e *FileEmitter) TimelinePath() string {
	return e.timeline.Name()
}

// Close closes both streams.
func (e *FileEmitter) Close() error {
	return errors.Join(e.log.Close(), e.timeline.Close())
}

// writeLine appends v as one JSON line with a single write.
func writeLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// MemoryEmitter keeps the audit trail in memory.
type MemoryEmitter struct {
	Events   []Event
	Timeline []TimelineRecord
	Summary  *models.RunSummary

	// FailAfter makes every write after the first FailAfter records fail.
	// Zero disables failures.
	FailAfter int
	writes    int
}

// ErrInjected is returned by MemoryEmitter once FailAfter is reached.
var ErrInjected = errors.New("audit write failed")

func (m *MemoryEmitter) write() error {
	m.writes++
	if m.FailAfter > 0 && m.writes > m.FailAfter {
		return ErrInjected
	}
	return nil
}

// Emit records an iteration log record.
func (m *MemoryEmitter) Emit(ev Event) error {
	if err := m.write(); err != nil {
		return err
	}
	m.Events = append(m.Events, ev)
	return nil
}

// EmitTimeline records a checklist timeline record.
func (m *MemoryEmitter) EmitTimeline(rec TimelineRecord) error {
	if err := m.write(); err != nil {
		return err
	}
	m.Timeline = append(m.Timeline, rec)
	return nil
}

// WriteSummary records the summary. It never fails.
func (m *MemoryEmitter) WriteSummary(summary *models.RunSummary) error {
	m.Summary = summary
	return nil
}

// LogPath returns "".
func (m *MemoryEmitter) LogPath() string { return "" }

// TimelinePath returns "".
func (m *MemoryEmitter) TimelinePath() string { return "" }

// EventsOf returns the recorded events of one type.
func (m *MemoryEmitter) EventsOf(t EventType) []Event {
	var out []Event
	for _, ev := range m.Events {
		if ev.Event == t {
			out = append(out, ev)
		}
	}
	return out
}
