package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoFiles(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = New([]string{""})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestWatcher_Relevant(t *testing.T) {
	dir := t.TempDir()
	task := filepath.Join(dir, "task.yaml")
	w, err := New([]string{task})
	require.NoError(t, err)

	assert.True(t, w.relevant(fsnotify.Event{Name: task, Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: task, Op: fsnotify.Create}))
	assert.False(t, w.relevant(fsnotify.Event{Name: task, Op: fsnotify.Chmod}))
	assert.False(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "other.yaml"), Op: fsnotify.Write}))
}

func TestWatcher_RunsOnChange(t *testing.T) {
	dir := t.TempDir()
	task := filepath.Join(dir, "task.yaml")
	require.NoError(t, os.WriteFile(task, []byte("checks: []\n"), 0644))

	w, err := New([]string{task}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { calls <- struct{}{} })
	}()

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run did not happen")
	}

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(task, []byte("checks: [a]\n"), 0644))

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("change did not trigger a run")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
