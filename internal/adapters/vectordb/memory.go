package vectordb

import (
	"context"
	"sync"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// InMemoryStore is an in-memory collection. Chunks are kept in insertion order.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks []entities.Chunk
}

// NewInMemoryStore creates an empty in-memory collection.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Store saves chunks with their embeddings.
func (s *InMemoryStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Search finds the most similar chunks to a query embedding.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return rank(embedding, s.chunks, topK), nil
}

// Count returns the number of stored chunks.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = nil
	return nil
}

// InMemoryFactory hands out independent in-memory collections.
type InMemoryFactory struct{}

// NewStore creates a fresh collection. The name is not retained.
func (InMemoryFactory) NewStore(ctx context.Context, collection string) (ports.VectorStore, error) {
	return NewInMemoryStore(), nil
}
