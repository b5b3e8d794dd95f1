package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

func newWatcher(t *testing.T, exts []string) *FSNotifyWatcher {
	t.Helper()
	w, err := NewFSNotifyWatcher(exts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })
	return w
}

// nextEvent waits for the first event matching op.
func nextEvent(t *testing.T, events <-chan ports.FileEvent, op ports.FileOperation) ports.FileEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event channel closed")
			if ev.Operation == op {
				return ev
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s event", op)
		}
	}
}

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	w := newWatcher(t, nil)
	assert.Equal(t, DefaultExtensions, w.extensions)
	assert.True(t, w.isWatchedExtension("report.PDF"))
	assert.True(t, w.isWatchedExtension("notes.docx"))
	assert.False(t, w.isWatchedExtension("image.png"))
}

func TestFSNotifyWatcher_CreateAndDelete(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, []string{".TXT"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))
	ev := nextEvent(t, events, ports.FileCreated)
	assert.Equal(t, path, ev.Path)

	require.NoError(t, os.Remove(path))
	ev = nextEvent(t, events, ports.FileDeleted)
	assert.Equal(t, path, ev.Path)
}

func TestFSNotifyWatcher_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	w := newWatcher(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := w.Watch(ctx, dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, []string{".txt"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := w.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0644))

	select {
	case ev := <-events:
		t.Errorf("unexpected event for %s", ev.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFSNotifyWatcher_ClosesOnCancel(t *testing.T) {
	w := newWatcher(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := w.Watch(ctx, t.TempDir())
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
