package chunking

import "strings"

// recursiveSeparators are tried in priority order. The terminal empty
// separator performs a hard character cut, which guarantees termination for
// text with no usable structure at all.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits on a priority list of separators, recursing into
// finer separators for any accumulated segment that is still over budget.
//
// It keeps paragraphs together when they fit, falls back to lines, then
// sentences, then words, and finally cuts raw characters.
type RecursiveChunker struct{}

// NewRecursiveChunker constructs a RecursiveChunker.
func NewRecursiveChunker() *RecursiveChunker {
	return &RecursiveChunker{}
}

// Chunk splits content recursively and assembles the final chunks with
// tail-overlap from the previous segment.
func (c *RecursiveChunker) Chunk(content string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	cores := splitRecursive(content, cfg.MaxTokens, 0)
	return assembleChunks(content, cores, cfg), nil
}

// splitRecursive splits text at the given separator tier, greedily
// accumulating separator-delimited parts up to the token budget and recursing
// into the next tier for any segment still over budget.
func splitRecursive(text string, maxTokens, tier int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if EstimateTokens(text) <= maxTokens {
		return []string{text}
	}
	if tier >= len(recursiveSeparators) {
		return hardCut(text, maxTokens)
	}

	sep := recursiveSeparators[tier]
	if sep == "" {
		return hardCut(text, maxTokens)
	}

	parts := strings.Split(text, sep)
	cores := accumulateParts(parts, sep, maxTokens)

	var out []string
	for _, core := range cores {
		if EstimateTokens(core) > maxTokens {
			out = append(out, splitRecursive(core, maxTokens, tier+1)...)
			continue
		}
		out = append(out, core)
	}
	return out
}

// hardCut slices text into maxTokens×4-rune pieces. Terminal case of the
// recursion.
func hardCut(text string, maxTokens int) []string {
	runes := []rune(text)
	size := maxTokens * charsPerToken
	if size < 1 {
		size = 1
	}

	var pieces []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

var _ Chunker = (*RecursiveChunker)(nil)
