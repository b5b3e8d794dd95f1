package usecases

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// chanWatcher implements ports.FileWatcher over a channel the test feeds.
type chanWatcher struct {
	events chan ports.FileEvent
}

func (w *chanWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return w.events, nil
}

func (w *chanWatcher) Stop() error { return nil }

// gatedIngester holds the first Ingest call until gate is closed.
type gatedIngester struct {
	inner   Ingester
	gate    chan struct{}
	started chan struct{}
	calls   atomic.Int32
	done    atomic.Int32
}

func gateIngestion(f *sessionFixture) *gatedIngester {
	g := &gatedIngester{
		inner:   f.manager.ingester,
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	f.manager.ingester = g
	return g
}

func (g *gatedIngester) Ingest(ctx context.Context, src entities.CorpusSource) (*IndexHandle, error) {
	defer g.done.Add(1)
	if g.calls.Add(1) == 1 {
		close(g.started)
		<-g.gate
	}
	return g.inner.Ingest(ctx, src)
}

func startInbox(t *testing.T, f *sessionFixture) (*InboxUseCase, *chanWatcher) {
	t.Helper()
	w := &chanWatcher{events: make(chan ports.FileEvent)}
	inbox := NewInboxUseCase(w, f.manager, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx, "inbox") }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return inbox, w
}

func TestInboxUseCase_CreatesAndClosesSessions(t *testing.T) {
	f := newSessionFixture(t)
	w := &chanWatcher{events: make(chan ports.FileEvent)}
	inbox := NewInboxUseCase(w, f.manager, 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx, "inbox") }()

	// Rapid writes to one file collapse into one ingestion.
	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileCreated}
	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileModified}
	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileModified}

	require.Eventually(t, func() bool { return len(inbox.Sessions()) == 1 }, timeout, tick)
	id := inbox.Sessions()["facts.txt"]
	require.NotEmpty(t, id)
	assert.Len(t, f.manager.Sessions(), 1)

	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileDeleted}
	require.Eventually(t, func() bool { return len(f.manager.Sessions()) == 0 }, timeout, tick)
	assert.Empty(t, inbox.Sessions())

	cancel()
	assert.NoError(t, <-done)
}

func TestInboxUseCase_ModifiedFileReplacesSession(t *testing.T) {
	f := newSessionFixture(t)
	w := &chanWatcher{events: make(chan ports.FileEvent)}
	inbox := NewInboxUseCase(w, f.manager, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inbox.Run(ctx, "inbox")

	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileCreated}
	require.Eventually(t, func() bool { return len(inbox.Sessions()) == 1 }, timeout, tick)
	first := inbox.Sessions()["facts.txt"]

	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileModified}
	require.Eventually(t, func() bool {
		id := inbox.Sessions()["facts.txt"]
		return id != "" && id != first && len(f.manager.Sessions()) == 1
	}, timeout, tick)
}

func TestInboxUseCase_UnreadableFileIsSkipped(t *testing.T) {
	f := newSessionFixture(t)
	w := &chanWatcher{events: make(chan ports.FileEvent)}
	inbox := NewInboxUseCase(w, f.manager, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx, "inbox") }()

	w.events <- ports.FileEvent{Path: "empty.txt", Operation: ports.FileCreated}
	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileCreated}
	require.Eventually(t, func() bool { return len(inbox.Sessions()) == 1 }, timeout, tick)
	assert.Empty(t, inbox.Sessions()["empty.txt"])

	close(w.events)
	assert.NoError(t, <-done)
	cancel()
}

func TestInboxUseCase_WriteDuringIngestionKeepsOneSession(t *testing.T) {
	f := newSessionFixture(t)
	gated := gateIngestion(f)
	inbox, w := startInbox(t, f)

	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileCreated}
	<-gated.started
	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileModified}
	require.Eventually(t, func() bool { return gated.done.Load() == 1 }, timeout, tick)

	close(gated.gate)
	// The superseded session is created and then closed again.
	require.Eventually(t, func() bool { return f.history.deletedCount() == 1 }, timeout, tick)

	require.Len(t, f.manager.Sessions(), 1)
	live := f.manager.Sessions()[0].ID
	assert.Equal(t, map[string]string{"facts.txt": live}, inbox.Sessions())
}

func TestInboxUseCase_DeleteDuringIngestionLeavesNoSession(t *testing.T) {
	f := newSessionFixture(t)
	gated := gateIngestion(f)
	inbox, w := startInbox(t, f)

	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileCreated}
	<-gated.started
	w.events <- ports.FileEvent{Path: "facts.txt", Operation: ports.FileDeleted}

	close(gated.gate)
	require.Eventually(t, func() bool { return f.history.deletedCount() == 1 }, timeout, tick)

	assert.Empty(t, f.manager.Sessions())
	assert.Empty(t, inbox.Sessions())
}
