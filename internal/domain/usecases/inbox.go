package usecases

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

// InboxUseCase turns files dropped into a directory into sessions.
//
// Every event on a path takes a new generation number. An ingest only binds
// its session if its generation is still current when ingestion finishes;
// otherwise a newer write or a delete superseded it and the session is
// closed again.
type InboxUseCase struct {
	watcher  ports.FileWatcher
	sessions *SessionManager
	settle   time.Duration
	log      logging.Logger

	mu      sync.Mutex
	seq     uint64
	gen     map[string]uint64 // path -> current generation
	pending map[string]*time.Timer
	byPath  map[string]string // path -> session id
	wg      sync.WaitGroup
}

// NewInboxUseCase creates an inbox. settle is how long a file must stay
// unmodified before it is ingested.
func NewInboxUseCase(watcher ports.FileWatcher, sessions *SessionManager, settle time.Duration, log logging.Logger) *InboxUseCase {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &InboxUseCase{
		watcher:  watcher,
		sessions: sessions,
		settle:   settle,
		log:      logging.OrNop(log),
		gen:      make(map[string]uint64),
		pending:  make(map[string]*time.Timer),
		byPath:   make(map[string]string),
	}
}

// Run watches dir until ctx is cancelled.
func (uc *InboxUseCase) Run(ctx context.Context, dir string) error {
	events, err := uc.watcher.Watch(ctx, dir)
	if err != nil {
		return err
	}
	uc.log.Info("watching %s for new documents", dir)

	defer uc.wg.Wait()
	defer uc.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				uc.schedule(ctx, ev.Path)
			case ports.FileDeleted:
				uc.forget(ctx, ev.Path)
			}
		}
	}
}

// Sessions returns a copy of the path to session id map.
func (uc *InboxUseCase) Sessions() map[string]string {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	out := make(map[string]string, len(uc.byPath))
	for p, id := range uc.byPath {
		out[p] = id
	}
	return out
}

// bump starts a new generation for path and cancels its pending timer.
// Callers hold uc.mu.
func (uc *InboxUseCase) bump(path string) uint64 {
	uc.seq++
	uc.gen[path] = uc.seq
	if t, ok := uc.pending[path]; ok {
		if t.Stop() {
			uc.wg.Done()
		}
		delete(uc.pending, path)
	}
	return uc.seq
}

func (uc *InboxUseCase) schedule(ctx context.Context, path string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	g := uc.bump(path)
	uc.wg.Add(1)
	uc.pending[path] = time.AfterFunc(uc.settle, func() {
		defer uc.wg.Done()
		uc.ingest(ctx, path, g)
	})
}

func (uc *InboxUseCase) ingest(ctx context.Context, path string, g uint64) {
	uc.mu.Lock()
	if uc.gen[path] != g {
		uc.mu.Unlock()
		return
	}
	delete(uc.pending, path)
	uc.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	id, err := uc.sessions.CreateSession(ctx, entities.CorpusSource{Path: path, Name: filepath.Base(path)})
	if err != nil {
		uc.log.Warn("inbox: %s not ingested: %v", path, err)
		return
	}

	uc.mu.Lock()
	if uc.gen[path] != g {
		uc.mu.Unlock()
		uc.log.Debug("inbox: %s changed during ingestion, dropping session %s", path, id)
		uc.closeSession(ctx, id)
		return
	}
	previous := uc.byPath[path]
	uc.byPath[path] = id
	uc.mu.Unlock()

	if previous != "" {
		uc.closeSession(ctx, previous)
	}
	uc.log.Info("inbox: %s -> session %s", filepath.Base(path), id)
}

func (uc *InboxUseCase) forget(ctx context.Context, path string) {
	uc.mu.Lock()
	uc.bump(path)
	delete(uc.gen, path)
	id, ok := uc.byPath[path]
	delete(uc.byPath, path)
	uc.mu.Unlock()

	if !ok {
		return
	}
	uc.closeSession(ctx, id)
	uc.log.Info("inbox: %s removed, session %s closed", filepath.Base(path), id)
}

func (uc *InboxUseCase) closeSession(ctx context.Context, id string) {
	if err := uc.sessions.CloseSession(context.WithoutCancel(ctx), id); err != nil {
		uc.log.Warn("inbox: closing session %s: %v", id, err)
	}
}

func (uc *InboxUseCase) stopPending() {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	for path, t := range uc.pending {
		if t.Stop() {
			uc.wg.Done()
		}
		delete(uc.pending, path)
	}
}
