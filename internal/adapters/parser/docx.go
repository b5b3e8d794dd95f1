package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

var errNoDocumentXML = errors.New("missing " + docxBody)

// DocxParser extracts the body text of Word documents. Paragraphs become
// lines; tabs and breaks are kept.
type DocxParser struct{}

// NewDocxParser creates a DOCX parser.
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Parse returns the document body as a single unit.
func (p *DocxParser) Parse(ctx context.Context, data []byte, filename string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, errNoDocumentXML)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	defer rc.Close()

	text, err := extractDocxText(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return []string{text}, nil
}

// SupportedFormats returns formats this parser handles.
func (p *DocxParser) SupportedFormats() []string {
	return []string{"docx"}
}

// extractDocxText walks WordprocessingML: w:t carries text, w:p ends a
// paragraph.
func extractDocxText(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
