package chunking

import (
	"regexp"
	"strings"
)

// paragraphBoundary matches a blank-line paragraph break.
var paragraphBoundary = regexp.MustCompile(`\n\s*\n`)

// SemanticChunker accumulates whole paragraphs up to the token budget.
//
// Paragraphs are the strongest structural signal available without a model,
// so this strategy preserves author-intended topic boundaries. A single
// paragraph over budget becomes a chunk of its own.
type SemanticChunker struct{}

// NewSemanticChunker constructs a SemanticChunker.
func NewSemanticChunker() *SemanticChunker {
	return &SemanticChunker{}
}

// Chunk splits content on blank-line boundaries and flushes accumulated
// paragraphs whenever the next one would exceed the budget, applying overlap
// at each flush point.
func (c *SemanticChunker) Chunk(content string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	paragraphs := paragraphBoundary.Split(content, -1)
	cores := accumulateParts(paragraphs, "\n\n", cfg.MaxTokens)
	return assembleChunks(content, cores, cfg), nil
}

var _ Chunker = (*SemanticChunker)(nil)
