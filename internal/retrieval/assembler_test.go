package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleChunks() []ScoredChunk {
	return []ScoredChunk{
		{ChunkID: "doc-1:0", DocumentID: "doc-1", Content: "first passage", Score: 0.9},
		{ChunkID: "doc-2:0", DocumentID: "doc-2", Content: "second passage", Score: 0.8},
	}
}

func TestAssembleEmpty(t *testing.T) {
	for _, model := range []string{ModelClaude, ModelGPT, ModelGemini, ModelGeneric, "", "unknown"} {
		assert.Empty(t, Assemble(nil, model), "model %q", model)
	}
}

func TestAssembleClaude(t *testing.T) {
	out := Assemble(sampleChunks(), ModelClaude)

	assert.Contains(t, out, `<document index="1" source="doc-1">`)
	assert.Contains(t, out, `<document index="2" source="doc-2">`)
	assert.Contains(t, out, "first passage")
	assert.True(t, len(out) > 0 && out[0] == '<')
	assert.Contains(t, out, "<context>")
	assert.Contains(t, out, "</context>")
}

func TestAssembleGPT(t *testing.T) {
	out := Assemble(sampleChunks(), ModelGPT)

	assert.Contains(t, out, "## Retrieved Context")
	assert.Contains(t, out, "### Source 1 (doc-1)")
	assert.Contains(t, out, "### Source 2 (doc-2)")
	assert.Contains(t, out, "\n\n---\n\n")
}

func TestAssembleGeneric(t *testing.T) {
	expected := "[1] (Source: doc-1)\nfirst passage\n\n[2] (Source: doc-2)\nsecond passage"

	assert.Equal(t, expected, Assemble(sampleChunks(), ModelGeneric))
	assert.Equal(t, expected, Assemble(sampleChunks(), ModelGemini), "gemini shares the generic format")
	assert.Equal(t, expected, Assemble(sampleChunks(), ""), "empty model defaults to generic")
}
