// Package loader provides document loading adapters.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/documentloaders"

	"github.com/0xcro3dile/ragchat-go/internal/adapters/parser"
	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/0xcro3dile/ragchat-go/internal/domain/ports"
)

// TextLoader loads plain text documents (.txt, .md).
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	docs, err := documentloaders.NewText(file).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	out := make([]entities.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, entities.Document{
			ID:        generateDocID(path, 0),
			Name:      filepath.Base(path),
			Path:      path,
			Content:   d.PageContent,
			CreatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// ParsedLoader loads binary documents through a ports.DocumentParser. Paged
// formats produce one Document per page.
type ParsedLoader struct {
	parser ports.DocumentParser
	paged  bool
}

// NewParsedLoader creates a loader for p.
func NewParsedLoader(p ports.DocumentParser, paged bool) *ParsedLoader {
	return &ParsedLoader{parser: p, paged: paged}
}

// Load reads and parses the file at path.
func (l *ParsedLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	modTime := time.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}

	units, err := l.parser.Parse(ctx, data, filepath.Base(path))
	if err != nil {
		return nil, err
	}

	docs := make([]entities.Document, 0, len(units))
	for i, text := range units {
		page := 0
		if l.paged {
			page = i + 1
		}
		docs = append(docs, entities.Document{
			ID:        generateDocID(path, page),
			Name:      filepath.Base(path),
			Path:      path,
			Page:      page,
			Content:   text,
			CreatedAt: modTime,
		})
	}
	return docs, nil
}

// SupportedExtensions returns file extensions.
func (l *ParsedLoader) SupportedExtensions() []string {
	formats := l.parser.SupportedFormats()
	exts := make([]string, len(formats))
	for i, f := range formats {
		exts[i] = "." + f
	}
	return exts
}

// MultiLoader combines multiple loaders, dispatching on file extension.
type MultiLoader struct {
	loaders map[string]ports.DocumentLoader
}

// NewMultiLoader creates a loader for text, Markdown, PDF and DOCX files.
func NewMultiLoader() *MultiLoader {
	m := &MultiLoader{loaders: make(map[string]ports.DocumentLoader)}
	m.Register(NewTextLoader())
	m.Register(NewParsedLoader(parser.NewPDFParser(), true))
	m.Register(NewParsedLoader(parser.NewDocxParser(), false))
	return m
}

// Register adds l for every extension it supports, replacing earlier loaders.
func (m *MultiLoader) Register(l ports.DocumentLoader) {
	for _, ext := range l.SupportedExtensions() {
		m.loaders[strings.ToLower(ext)] = l
	}
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) ([]entities.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := m.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	return l.Load(ctx, path)
}

// Supports reports whether path has a loadable extension.
func (m *MultiLoader) Supports(path string) bool {
	_, ok := m.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedExtensions returns all supported extensions, sorted.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// generateDocID creates a deterministic ID for a document unit.
func generateDocID(path string, page int) string {
	hash := sha256.Sum256([]byte(path + "#" + strconv.Itoa(page)))
	return hex.EncodeToString(hash[:8])
}
