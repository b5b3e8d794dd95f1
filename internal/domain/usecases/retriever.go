package usecases

import (
	"context"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// DefaultTopK is the number of chunks retrieved when k is not configured.
const DefaultTopK = 5

// Retriever finds the chunks of one index most relevant to a query.
type Retriever struct {
	embedder ports.EmbeddingService
	store    ports.VectorStore
	topK     int
}

// NewRetriever binds a retriever to an index.
func NewRetriever(embedder ports.EmbeddingService, store ports.VectorStore, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// Retrieve returns at most k chunks by descending score. k <= 0 uses the
// retriever's default. An empty index yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (entities.RetrievalResult, error) {
	if k <= 0 {
		k = r.topK
	}

	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, &entities.IndexingError{Err: err}
	}
	if n == 0 {
		return entities.RetrievalResult{}, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &entities.EmbeddingError{Err: err}
	}

	results, err := r.store.Search(ctx, vec, k)
	if err != nil {
		return nil, &entities.IndexingError{Err: err}
	}
	if len(results) > k {
		results = results[:k]
	}
	return entities.RetrievalResult(results), nil
}

// TopK returns the default k.
func (r *Retriever) TopK() int { return r.topK }
