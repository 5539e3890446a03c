package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "info", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Stderr: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "run_id", "r1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "run_id=r1")
	assert.NoError(t, l.Close())
}

func TestNew_File(t *testing.T) {
	path := DefaultFile(t.TempDir())
	l, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	l.Info("iteration complete", "iteration", 2)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "iteration complete", rec["msg"])
	assert.Equal(t, float64(2), rec["iteration"])
	assert.Equal(t, "debug.log", filepath.Base(path))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing")
	assert.NoError(t, l.Close())

	var nilLogger *Logger
	assert.NoError(t, nilLogger.Close())
}
