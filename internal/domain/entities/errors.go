package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCorpus means the corpus held no extractable text.
	ErrEmptyCorpus = errors.New("corpus contains no extractable text")

	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrUnsupportedCapability is returned by providers that lack a capability
	// (for example embeddings on a chat-only vendor).
	ErrUnsupportedCapability = errors.New("capability not supported by provider")
)

// SessionNotFoundError is returned for an unknown session id.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.SessionID)
}

// IngestionError means the corpus could not be loaded or split.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting %s: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// EmbeddingError wraps a failure of the embedding provider.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding: " + e.Err.Error() }

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexingError wraps a vector index failure.
type IndexingError struct {
	Err error
}

func (e *IndexingError) Error() string { return "indexing: " + e.Err.Error() }

func (e *IndexingError) Unwrap() error { return e.Err }

// Generation stages.
const (
	StageRewrite  = "rewrite"
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
)

// GenerationError wraps a fault of one of the ask pipeline stages.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
