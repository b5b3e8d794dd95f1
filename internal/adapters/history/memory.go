// Package history provides session transcript stores.
// Clean Architecture: Adapters implementing ports.HistoryStore.
package history

import (
	"context"
	"sync"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]entities.Turn
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]entities.Turn)}
}

// Append adds turns in order.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, turns ...entities.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[sessionID] = append(s.turns[sessionID], turns...)
	return nil
}

// Load returns a copy of the session's turns.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) ([]entities.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	out := make([]entities.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Delete drops the transcript.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, sessionID)
	return nil
}
