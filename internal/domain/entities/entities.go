// Package entities contains core business entities.
// Pure domain objects with no external dependencies.
package entities

import (
	"strings"
	"time"
)

// CorpusSource identifies the uploaded file a session is built from.
type CorpusSource struct {
	Path string
	Name string // Display name, defaults to the base of Path
}

// Document is one raw text unit extracted from a corpus file (a page of a PDF,
// the body of a DOCX or text file).
type Document struct {
	ID        string
	Name      string
	Path      string
	Page      int // 1-based for paged formats, 0 otherwise
	Content   string
	CreatedAt time.Time
}

// Chunk is a contiguous span of a Document, produced once during ingestion.
type Chunk struct {
	ID         string
	DocumentID string
	SourceName string
	Content    string
	Index      int       // Position in the corpus
	Offset     int       // Character offset inside the source document
	Embedding  []float32 // Populated by the embedding adapter
}

// QueryResult is a retrieved chunk with its relevance.
type QueryResult struct {
	Chunk     Chunk
	Score     float64
	SourceDoc string
}

// RetrievalResult is the ranked output of one retrieval, scoped to a single ask.
type RetrievalResult []QueryResult

// Context joins chunk texts with sep. Chunk boundaries and metadata are lost.
func (r RetrievalResult) Context(sep string) string {
	parts := make([]string, len(r))
	for i, res := range r {
		parts[i] = res.Chunk.Content
	}
	return strings.Join(parts, sep)
}

// Role of a conversation turn or prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session History. Turns are immutable once appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn builds an assistant turn.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// SystemTurn builds a system prompt message. Never stored in History.
func SystemTurn(content string) Turn { return Turn{Role: RoleSystem, Content: content} }

// Fragment is one piece of a streamed answer: either text or a terminal error.
type Fragment struct {
	Text string
	Err  error
}

// IsError reports whether the fragment carries a fault instead of text.
func (f Fragment) IsError() bool { return f.Err != nil }

// String renders the fragment as answer text. Errors become an "Error: " sentinel.
func (f Fragment) String() string {
	if f.Err != nil {
		return "Error: " + f.Err.Error()
	}
	return f.Text
}

// ChatResponse is a complete, non-streamed answer with its sources.
type ChatResponse struct {
	Question string
	Answer   string
	Sources  RetrievalResult
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID         string    `json:"session_id"`
	Source     string    `json:"source"`
	ChunkCount int       `json:"chunk_count"`
	Turns      int       `json:"turns"`
	State      string    `json:"state"` // Stage of the latest ask
	CreatedAt  time.Time `json:"created_at"`
}
