package chunking

import (
	"regexp"
	"strings"
)

// sentenceBoundary matches a sentence break: terminal punctuation followed by
// whitespace and a capital letter. The punctuation and capital are both
// single-byte classes, so byte arithmetic on match indices is safe.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+[A-Z]`)

// SentenceChunker accumulates whole sentences up to the token budget.
//
// Sentences are never split; a single sentence over budget becomes a chunk of
// its own. Overlap is carried as the character tail of the previous chunk.
type SentenceChunker struct{}

// NewSentenceChunker constructs a SentenceChunker.
func NewSentenceChunker() *SentenceChunker {
	return &SentenceChunker{}
}

// Chunk splits content on sentence boundaries and flushes accumulated
// sentences whenever the next one would exceed the budget.
func (c *SentenceChunker) Chunk(content string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	sentences := splitSentences(content)
	cores := accumulateParts(sentences, " ", cfg.MaxTokens)
	return assembleChunks(content, cores, cfg), nil
}

// splitSentences cuts text after each sentence-terminal punctuation mark that
// is followed by whitespace and a capital letter. Text with no boundary at
// all is returned as a single sentence.
func splitSentences(text string) []string {
	matches := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sentences []string
	start := 0
	for _, m := range matches {
		// m[0] is the punctuation byte; the sentence ends just past it.
		// m[1]-1 is the capital letter starting the next sentence.
		end := m[0] + 1
		sentences = append(sentences, text[start:end])
		start = m[1] - 1
	}
	sentences = append(sentences, text[start:])
	return sentences
}

var _ Chunker = (*SentenceChunker)(nil)
