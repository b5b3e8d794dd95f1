// Package parser provides document parsing adapters.
// Clean Architecture: Adapter implementing ports.DocumentParser.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/documentloaders"
)

// PDFParser extracts text from PDFs, one unit per page.
type PDFParser struct{}

// NewPDFParser creates a PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts the text of every page. Pages without text yield "".
func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) (pages []string, err error) {
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing %s: malformed PDF: %v", filename, r)
		}
	}()

	loader := documentloaders.NewPDF(bytes.NewReader(data), int64(len(data)))
	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	pages = make([]string, len(docs))
	for i, d := range docs {
		pages[i] = cleanPDFContent(d.PageContent)
	}
	return pages, nil
}

// SupportedFormats returns formats this parser handles.
func (p *PDFParser) SupportedFormats() []string {
	return []string{"pdf"}
}

// cleanPDFContent removes control characters and binary garbage from
// extracted text, keeping newlines and tabs.
func cleanPDFContent(content string) string {
	var cleaned strings.Builder
	for _, r := range content {
		if r == '\n' || r == '\t' || (unicode.IsPrint(r) && r != unicode.ReplacementChar) {
			cleaned.WriteRune(r)
		}
	}
	return strings.TrimSpace(cleaned.String())
}
