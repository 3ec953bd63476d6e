package chunking

import "strings"

// FixedChunker slides a fixed-size character window across the text.
//
// The window is maxTokens×4 runes wide and steps back overlap×4 runes between
// chunks. It ignores all structure in the text, which makes it the cheapest
// and most predictable strategy.
type FixedChunker struct{}

// NewFixedChunker constructs a FixedChunker.
func NewFixedChunker() *FixedChunker {
	return &FixedChunker{}
}

// Chunk applies the sliding window. The loop terminates even when
// overlap >= maxTokens: if the next window start would not advance past the
// current one, chunking stops after the current window.
func (c *FixedChunker) Chunk(content string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	runes := []rune(content)
	window := cfg.MaxTokens * charsPerToken
	back := cfg.Overlap * charsPerToken

	var chunks []Chunk
	start := 0
	prevEnd := 0
	for start < len(runes) {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			// The carried overlap is the region shared with the previous
			// window, which may be shorter than the configured back-step.
			overlapTokens := 0
			if len(chunks) > 0 && start < prevEnd {
				overlapTokens = EstimateTokens(string(runes[start:prevEnd]))
			}
			chunks = append(chunks, Chunk{
				Content:    piece,
				Index:      len(chunks),
				TokenCount: EstimateTokens(piece),
				Metadata: Metadata{
					StartChar:     start,
					EndChar:       end,
					OverlapTokens: overlapTokens,
				},
			})
		}

		if end == len(runes) {
			break
		}
		next := end - back
		if next <= start {
			break
		}
		prevEnd = end
		start = next
	}

	return chunks, nil
}

var _ Chunker = (*FixedChunker)(nil)
