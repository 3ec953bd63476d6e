package retrieval

import (
	"fmt"
	"strings"
)

// Target model names accepted by Assemble. Unknown names fall back to the
// generic format.
const (
	ModelClaude  = "claude"
	ModelGPT     = "gpt"
	ModelGemini  = "gemini"
	ModelGeneric = "generic"
)

// ScoredChunk is a read-only projection of one search hit. Never persisted.
type ScoredChunk struct {
	ChunkID     string                 `json:"chunkId"`
	DocumentID  string                 `json:"documentId"`
	Content     string                 `json:"content"`
	Score       float32                `json:"score"`
	RerankScore *float32               `json:"rerankScore,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Assemble renders chunks into a context block shaped for the target
// model. Pure function: empty input yields an empty string. The index in
// each block is the chunk's 1-based position in the input sequence.
func Assemble(chunks []ScoredChunk, targetModel string) string {
	if len(chunks) == 0 {
		return ""
	}
	switch targetModel {
	case ModelClaude:
		return assembleClaude(chunks)
	case ModelGPT:
		return assembleGPT(chunks)
	default:
		// gemini, generic, and anything unrecognized share one format.
		return assembleGeneric(chunks)
	}
}

func assembleClaude(chunks []ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("<context>\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&sb, "<document index=%q source=%q>\n%s\n</document>\n", fmt.Sprint(i+1), chunk.DocumentID, chunk.Content)
	}
	sb.WriteString("</context>")
	return sb.String()
}

func assembleGPT(chunks []ScoredChunk) string {
	blocks := make([]string, len(chunks))
	for i, chunk := range chunks {
		blocks[i] = fmt.Sprintf("### Source %d (%s)\n\n%s", i+1, chunk.DocumentID, chunk.Content)
	}
	return "## Retrieved Context\n\n" + strings.Join(blocks, "\n\n---\n\n")
}

func assembleGeneric(chunks []ScoredChunk) string {
	blocks := make([]string, len(chunks))
	for i, chunk := range chunks {
		blocks[i] = fmt.Sprintf("[%d] (Source: %s)\n%s", i+1, chunk.DocumentID, chunk.Content)
	}
	return strings.Join(blocks, "\n\n")
}
