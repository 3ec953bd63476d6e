package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedMimeType indicates content the parser cannot handle.
	ErrUnsupportedMimeType = errors.New("unsupported mime type")

	// ErrInvalidContent indicates undecodable document content.
	ErrInvalidContent = errors.New("invalid document content")
)

// ParseResult is the extracted form of a raw document.
type ParseResult struct {
	Text      string
	PageCount int
	Metadata  map[string]interface{}
}

// Parser extracts text from raw document content. Implementations for
// binary formats (PDF, DOCX) live in external services; this interface is
// the seam they plug into.
type Parser interface {
	Parse(ctx context.Context, content []byte, mimeType string) (*ParseResult, error)
}

// PlainTextParser handles text-native mime types without any external
// extraction service.
type PlainTextParser struct{}

// NewPlainTextParser creates a parser for text-native content.
func NewPlainTextParser() *PlainTextParser {
	return &PlainTextParser{}
}

var plainTextMimeTypes = map[string]bool{
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
	"application/json": true,
}

// Parse decodes text content. The mime type's parameters (charset etc.)
// are ignored for matching.
func (p *PlainTextParser) Parse(_ context.Context, content []byte, mimeType string) (*ParseResult, error) {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if !plainTextMimeTypes[base] {
		return nil, fmt.Errorf("%w: %q is not text-native, route it to an extraction service", ErrUnsupportedMimeType, mimeType)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	return &ParseResult{
		Text:      string(content),
		PageCount: 1,
		Metadata:  map[string]interface{}{"mime_type": base},
	}, nil
}

// Ensure PlainTextParser implements Parser.
var _ Parser = (*PlainTextParser)(nil)
