// Package splitter provides text chunking adapters.
// Clean Architecture: Adapter implementing ports.TextSplitter.
package splitter

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults match the chunking used when no configuration is given.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// RecursiveSplitter cuts text on paragraph, line, then word boundaries so
// that every chunk fits chunkSize characters.
type RecursiveSplitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewRecursiveSplitter creates a splitter. Zero values use the defaults.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}

	return &RecursiveSplitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// SplitText splits text into overlapping chunks.
func (s *RecursiveSplitter) SplitText(text string) ([]string, error) {
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}
	return chunks, nil
}
