package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRescanner struct {
	calls atomic.Int32
}

func (c *countingRescanner) Rescan(ctx context.Context) error {
	c.calls.Add(1)
	return nil
}

func startWatcher(t *testing.T, r Rescanner, dir string) *DirWatcher {
	t.Helper()
	w, err := NewDirWatcher(r, dir, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return w
}

func TestDirWatcher_RescansOnNewFile(t *testing.T) {
	dir := t.TempDir()
	r := &countingRescanner{}
	startWatcher(t, r, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestDirWatcher_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	r := &countingRescanner{}
	startWatcher(t, r, dir)

	for _, name := range []string{"a.txt", "b.md", "c.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestDirWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	r := &countingRescanner{}
	startWatcher(t, r, dir)

	for _, name := range []string{"resume.docx", ".upload-123", "embedded_files.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestDirWatcher_MissingDir(t *testing.T) {
	_, err := NewDirWatcher(&countingRescanner{}, filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)
}

func TestTriggersRescan(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create text", fsnotify.Event{Name: "/d/a.txt", Op: fsnotify.Create}, true},
		{"write audio", fsnotify.Event{Name: "/d/talk.MP3", Op: fsnotify.Write}, true},
		{"remove", fsnotify.Event{Name: "/d/a.txt", Op: fsnotify.Remove}, false},
		{"chmod", fsnotify.Event{Name: "/d/a.txt", Op: fsnotify.Chmod}, false},
		{"hidden temp", fsnotify.Event{Name: "/d/.upload-42", Op: fsnotify.Create}, false},
		{"manifest", fsnotify.Event{Name: "/d/embedded_files.txt", Op: fsnotify.Write}, false},
		{"unsupported", fsnotify.Event{Name: "/d/a.docx", Op: fsnotify.Create}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, triggersRescan(tt.ev))
		})
	}
}
