// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

// IndexHandle is a fully built, queryable index for one corpus.
type IndexHandle struct {
	Collection string
	Store      ports.VectorStore
	Source     string
	Documents  int
	Chunks     int
}

// IngestOptions tunes embedding fan-out.
type IngestOptions struct {
	BatchSize   int // Texts per EmbedBatch call
	Concurrency int // Concurrent EmbedBatch calls
}

// IngestUseCase is the chunk store adapter: load, split, embed and index a
// corpus as one operation.
type IngestUseCase struct {
	loader   ports.DocumentLoader
	splitter ports.TextSplitter
	embedder ports.EmbeddingService
	stores   ports.VectorStoreFactory
	opts     IngestOptions
	log      logging.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	loader ports.DocumentLoader,
	splitter ports.TextSplitter,
	embedder ports.EmbeddingService,
	stores ports.VectorStoreFactory,
	opts IngestOptions,
	log logging.Logger,
) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &IngestUseCase{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		stores:   stores,
		opts:     opts,
		log:      logging.OrNop(log),
	}
}

// Ingest builds a fresh index for src. On failure nothing is returned and the
// partially written collection is dropped.
func (uc *IngestUseCase) Ingest(ctx context.Context, src entities.CorpusSource) (*IndexHandle, error) {
	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}

	docs, err := uc.loader.Load(ctx, src.Path)
	if err != nil {
		return nil, &entities.IngestionError{Source: name, Err: err}
	}

	chunks, err := uc.split(docs)
	if err != nil {
		return nil, &entities.IngestionError{Source: name, Err: err}
	}
	if len(chunks) == 0 {
		return nil, &entities.IngestionError{Source: name, Err: entities.ErrEmptyCorpus}
	}
	uc.log.Debug("split %s into %d chunks from %d documents", name, len(chunks), len(docs))

	if err := uc.embed(ctx, chunks); err != nil {
		return nil, err
	}

	collection := "corpus_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	store, err := uc.stores.NewStore(ctx, collection)
	if err != nil {
		return nil, &entities.IndexingError{Err: err}
	}
	if err := store.Store(ctx, chunks); err != nil {
		if cerr := store.Clear(context.WithoutCancel(ctx)); cerr != nil {
			uc.log.Warn("dropping partial collection %s: %v", collection, cerr)
		}
		return nil, &entities.IndexingError{Err: err}
	}

	uc.log.Info("indexed %s: %d documents, %d chunks", name, len(docs), len(chunks))
	return &IndexHandle{
		Collection: collection,
		Store:      store,
		Source:     name,
		Documents:  len(docs),
		Chunks:     len(chunks),
	}, nil
}

// split turns raw text units into chunks, recording each chunk's offset in its
// source document.
func (uc *IngestUseCase) split(docs []entities.Document) ([]entities.Chunk, error) {
	var chunks []entities.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		parts, err := uc.splitter.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", doc.Name, err)
		}

		searchFrom := 0
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			offset := -1
			if i := strings.Index(doc.Content[searchFrom:], part); i >= 0 {
				offset = searchFrom + i
				searchFrom = offset + 1
			}
			index := len(chunks)
			chunks = append(chunks, entities.Chunk{
				ID:         generateChunkID(doc.ID, index),
				DocumentID: doc.ID,
				SourceName: doc.Name,
				Content:    part,
				Index:      index,
				Offset:     offset,
			})
		}
	}
	return chunks, nil
}

// embed fills chunk embeddings, running batches concurrently. The first
// failing batch cancels the rest.
func (uc *IngestUseCase) embed(ctx context.Context, chunks []entities.Chunk) error {
	p := pool.New().WithMaxGoroutines(uc.opts.Concurrency).WithContext(ctx).WithCancelOnError()

	for start := 0; start < len(chunks); start += uc.opts.BatchSize {
		end := min(start+uc.opts.BatchSize, len(chunks))
		batch := chunks[start:end]

		p.Go(func(ctx context.Context) error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}
			vectors, err := uc.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("got %d vectors for %d texts", len(vectors), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return &entities.EmbeddingError{Err: err}
	}
	return nil
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(docID + "#" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:8])
}
