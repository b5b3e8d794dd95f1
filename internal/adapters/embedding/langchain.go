// Package embedding provides embedding adapters.
// Clean Architecture: adapters implementing ports.EmbeddingService. They know
// about vendor specifics but the domain layer doesn't.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/0xcro3dile/ragchat-go/internal/infrastructure/logging"
)

// Options tunes a LangChainEmbedder.
type Options struct {
	BatchSize int           // Texts per vendor request
	Attempts  uint          // Tries per call, 1 disables retries
	Delay     time.Duration // Initial backoff
}

// LangChainEmbedder implements ports.EmbeddingService over a langchaingo
// embedder client, retrying transient failures.
type LangChainEmbedder struct {
	name     string
	embedder embeddings.Embedder
	opts     Options
	log      logging.Logger
}

// NewLangChainEmbedder creates an embedder for client.
func NewLangChainEmbedder(name string, client embeddings.EmbedderClient, opts Options, log logging.Logger) (*LangChainEmbedder, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 200 * time.Millisecond
	}

	e, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(opts.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("creating embedder %s: %w", name, err)
	}
	return &LangChainEmbedder{name: name, embedder: e, opts: opts, log: logging.OrNop(log)}, nil
}

// Embed generates an embedding for a single text.
func (e *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.retry(ctx, func() error {
		v, err := e.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query with %s: %w", e.name, err)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for texts, in input order.
func (e *LangChainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := e.retry(ctx, func() error {
		v, err := e.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		if len(v) != len(texts) {
			return fmt.Errorf("got %d vectors for %d texts", len(v), len(texts))
		}
		vecs = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts with %s: %w", len(texts), e.name, err)
	}
	return vecs, nil
}

func (e *LangChainEmbedder) retry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(e.opts.Attempts),
		retry.Delay(e.opts.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.log.Warn("embedding with %s failed (attempt %d): %v", e.name, n+1, err)
		}),
	)
}
