// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService generates text from a chat-style prompt.
type LLMService interface {
	// Complete returns the full completion for the messages.
	Complete(ctx context.Context, messages []entities.Turn) (string, error)

	// CompleteStream returns a channel of tokens in model emission order.
	// The channel is closed when the model finishes, fails or ctx is cancelled.
	CompleteStream(ctx context.Context, messages []entities.Turn) (<-chan StreamToken, error)
}

// Provider is one configured model vendor. A vendor that cannot embed returns
// entities.ErrUnsupportedCapability from the embedding methods.
type Provider interface {
	EmbeddingService
	LLMService

	// Name is the configured provider name.
	Name() string
}

// StreamToken represents a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// VectorStore is one collection of embedded chunks.
type VectorStore interface {
	// Store saves chunks with their embeddings. Insertion order is kept for ties.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search returns at most topK chunks by descending similarity.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Clear removes all data from the collection.
	Clear(ctx context.Context) error
}

// VectorStoreFactory creates isolated collections, one per session.
type VectorStoreFactory interface {
	NewStore(ctx context.Context, collection string) (VectorStore, error)
}

// DocumentLoader reads raw text units from a corpus file.
type DocumentLoader interface {
	// Load reads the file at path. Unsupported types return an error.
	Load(ctx context.Context, path string) ([]entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// DocumentParser extracts text units from binary document formats (PDF, DOCX).
type DocumentParser interface {
	// Parse extracts text content from document bytes, one string per page
	// for paged formats.
	Parse(ctx context.Context, data []byte, filename string) ([]string, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf", "docx").
	SupportedFormats() []string
}

// TextSplitter cuts text into overlapping chunks.
type TextSplitter interface {
	SplitText(text string) ([]string, error)
}

// HistoryStore holds session transcripts.
type HistoryStore interface {
	// Append adds turns atomically, in order.
	Append(ctx context.Context, sessionID string, turns ...entities.Turn) error

	// Load returns a copy of the session's turns in conversational order.
	Load(ctx context.Context, sessionID string) ([]entities.Turn, error)

	// Delete drops the transcript.
	Delete(ctx context.Context, sessionID string) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
