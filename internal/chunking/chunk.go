// Package chunking splits extracted document text into token-budgeted chunks.
//
// Four interchangeable strategies are provided (fixed, recursive, sentence,
// semantic). All of them share the same token estimator (four characters per
// token, rounded up) and the same overlap unit (overlap tokens × 4 characters
// copied from the tail of the previous chunk into the next), so token-budget
// comparisons stay consistent no matter which strategy a project configures.
package chunking

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the fixed character-per-token approximation used across
// every strategy. This is a deliberate simplification, not a real tokenizer.
const charsPerToken = 4

// Sentinel errors for chunker construction and configuration.
var (
	// ErrInvalidConfig indicates an invalid chunking configuration.
	ErrInvalidConfig = errors.New("invalid chunking configuration")

	// ErrUnknownStrategy indicates an unrecognized strategy name.
	ErrUnknownStrategy = errors.New("unknown chunking strategy")
)

// Metadata carries positional information about a chunk within the source text.
type Metadata struct {
	// StartChar is the best-effort rune offset of the chunk in the original text.
	StartChar int `json:"start_char"`

	// EndChar is the best-effort rune offset just past the chunk.
	EndChar int `json:"end_char"`

	// PageNumber is the source page, when the parser reported one.
	PageNumber *int `json:"page_number,omitempty"`

	// SectionTitle is the enclosing section heading, when known.
	SectionTitle string `json:"section_title,omitempty"`

	// OverlapTokens is the token overlap carried in from the previous chunk.
	// Zero for the first chunk of a document.
	OverlapTokens int `json:"overlap_tokens"`
}

// Chunk is a token-budgeted slice of a document's extracted text.
type Chunk struct {
	// Content is the chunk text. Never empty after trimming.
	Content string `json:"content"`

	// Index is the zero-based, contiguous position within the document.
	Index int `json:"index"`

	// TokenCount is EstimateTokens(Content).
	TokenCount int `json:"token_count"`

	// Metadata holds offsets and overlap information.
	Metadata Metadata `json:"metadata"`
}

// Config holds the token budget shared by all strategies.
type Config struct {
	// MaxTokens is the per-chunk token budget. Must be at least 1.
	MaxTokens int `koanf:"max_tokens"`

	// Overlap is the number of tokens carried from the tail of one chunk
	// into the next. Must be non-negative.
	Overlap int `koanf:"overlap"`
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: max_tokens must be at least 1, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	return nil
}

// Chunker turns raw text into an ordered sequence of chunks.
//
// Implementations are deterministic for identical input and return zero
// chunks for empty or whitespace-only text.
type Chunker interface {
	Chunk(content string, cfg Config) ([]Chunk, error)
}

// EstimateTokens approximates the token count of s as ceil(runes/4).
//
// Every strategy and every downstream budget comparison uses this estimator.
// Substituting a real tokenizer would invalidate all maxTokens/overlap
// boundary behavior and must not be done casually.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// overlapTail returns the last overlap×4 runes of s, or all of s when shorter.
func overlapTail(s string, overlap int) string {
	if overlap <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	n := overlap * charsPerToken
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}

// runeOffset converts a byte offset in s to a rune offset.
func runeOffset(s string, byteOffset int) int {
	if byteOffset <= 0 {
		return 0
	}
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	return utf8.RuneCountInString(s[:byteOffset])
}

// locate finds the best-effort byte offset of needle in original, scanning
// forward from the last known offset. Separator-based splitting is lossy, so
// a miss falls back to the previous offset rather than failing the chunk.
func locate(original, needle string, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(original) {
		from = len(original)
	}
	if needle == "" {
		return from
	}
	if idx := strings.Index(original[from:], needle); idx >= 0 {
		return from + idx
	}
	// Retry from the beginning in case the window overshot.
	if idx := strings.Index(original, needle); idx >= 0 {
		return idx
	}
	return from
}

// assembleChunks builds the final chunk sequence from per-strategy core
// segments. Each core is trimmed, located in the original text for offsets,
// and (for every chunk after the first) prefixed with the overlap tail of the
// previous core. Empty cores are dropped; indices stay contiguous.
func assembleChunks(original string, cores []string, cfg Config) []Chunk {
	var chunks []Chunk
	searchFrom := 0
	prevCore := ""

	for _, core := range cores {
		trimmed := strings.TrimSpace(core)
		if trimmed == "" {
			continue
		}

		byteStart := locate(original, trimmed, searchFrom)
		startChar := runeOffset(original, byteStart)
		endChar := startChar + utf8.RuneCountInString(trimmed)
		searchFrom = byteStart + len(trimmed)

		content := trimmed
		overlapTokens := 0
		if len(chunks) > 0 && cfg.Overlap > 0 {
			if tail := overlapTail(prevCore, cfg.Overlap); tail != "" {
				content = tail + content
				// The previous core may be shorter than overlap×4 runes;
				// record what was actually carried.
				overlapTokens = EstimateTokens(tail)
			}
		}

		chunks = append(chunks, Chunk{
			Content:    content,
			Index:      len(chunks),
			TokenCount: EstimateTokens(content),
			Metadata: Metadata{
				StartChar:     startChar,
				EndChar:       endChar,
				OverlapTokens: overlapTokens,
			},
		})
		prevCore = trimmed
	}

	return chunks
}

// accumulateParts greedily joins parts into cores that stay within the token
// budget. A part is appended while the joined candidate still fits; otherwise
// the current core is flushed and the part starts a new one. Oversized single
// parts become cores of their own (the caller's strategy decides whether to
// split them further).
func accumulateParts(parts []string, joiner string, maxTokens int) []string {
	var cores []string
	current := ""

	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		candidate := part
		if current != "" {
			candidate = current + joiner + part
		}
		if current != "" && EstimateTokens(candidate) > maxTokens {
			cores = append(cores, current)
			current = part
			continue
		}
		current = candidate
	}
	if current != "" {
		cores = append(cores, current)
	}
	return cores
}
