package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"abcdefgh", 2},
		{strings.Repeat("x", 100), 25},
		// Rune count, not byte count.
		{"日本語のテキスト", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.input), "input %q", tt.input)
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{MaxTokens: 1}.Validate())
	assert.NoError(t, Config{MaxTokens: 512, Overlap: 50}.Validate())
	assert.ErrorIs(t, Config{MaxTokens: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{MaxTokens: 10, Overlap: -1}.Validate(), ErrInvalidConfig)
}

func allStrategies(t *testing.T) map[string]Chunker {
	t.Helper()
	chunkers := make(map[string]Chunker)
	for _, name := range []string{StrategyFixed, StrategyRecursive, StrategySentence, StrategySemantic} {
		c, err := New(name)
		require.NoError(t, err)
		chunkers[name] = c
	}
	return chunkers
}

// Shared contract: non-empty trimmed content, contiguous zero-based indices,
// zero chunks for blank input, determinism.
func TestChunkerContract(t *testing.T) {
	inputs := map[string]string{
		"empty":      "",
		"whitespace": "   \n\t  \n ",
		"short":      "Short text",
		"prose": "First sentence here. Second sentence follows. Third one too.\n\n" +
			"A new paragraph starts. It keeps going for a while with more words.\n\n" +
			"And a final paragraph to round things out.",
		"long unstructured": strings.Repeat("word ", 500),
	}
	budgets := []Config{
		{MaxTokens: 1},
		{MaxTokens: 10},
		{MaxTokens: 10, Overlap: 2},
		{MaxTokens: 50, Overlap: 10},
		{MaxTokens: 1000},
	}

	for name, chunker := range allStrategies(t) {
		for inputName, input := range inputs {
			for _, cfg := range budgets {
				t.Run(name+"/"+inputName, func(t *testing.T) {
					chunks, err := chunker.Chunk(input, cfg)
					require.NoError(t, err)

					if strings.TrimSpace(input) == "" {
						assert.Empty(t, chunks)
						return
					}
					require.NotEmpty(t, chunks)
					for i, chunk := range chunks {
						assert.Equal(t, i, chunk.Index, "indices must be contiguous from 0")
						assert.NotEmpty(t, strings.TrimSpace(chunk.Content))
						assert.Equal(t, EstimateTokens(chunk.Content), chunk.TokenCount)
					}

					again, err := chunker.Chunk(input, cfg)
					require.NoError(t, err)
					assert.Equal(t, chunks, again, "chunking must be deterministic")
				})
			}
		}
	}
}

func TestFixedChunker(t *testing.T) {
	chunker := NewFixedChunker()

	t.Run("long input produces multiple chunks", func(t *testing.T) {
		input := strings.Repeat("word ", 200) // 1000 chars
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 50})
		require.NoError(t, err)
		assert.Greater(t, len(chunks), 1)
	})

	t.Run("small input produces one chunk", func(t *testing.T) {
		chunks, err := chunker.Chunk(" hello ", Config{MaxTokens: 100})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello", chunks[0].Content)
	})

	t.Run("window offsets", func(t *testing.T) {
		input := strings.Repeat("abcd", 30) // 120 runes
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 10}) // 40-rune window
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, 0, chunks[0].Metadata.StartChar)
		assert.Equal(t, 40, chunks[0].Metadata.EndChar)
		assert.Equal(t, 40, chunks[1].Metadata.StartChar)
	})

	t.Run("overlap back-step", func(t *testing.T) {
		input := strings.Repeat("abcd", 30)
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 10, Overlap: 2})
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		// Second window starts 8 runes before the first window's end.
		assert.Equal(t, 32, chunks[1].Metadata.StartChar)
		assert.Zero(t, chunks[0].Metadata.OverlapTokens)
		assert.Equal(t, 2, chunks[1].Metadata.OverlapTokens)
	})

	t.Run("overlap >= maxTokens terminates", func(t *testing.T) {
		input := strings.Repeat("word ", 100)
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 10, Overlap: 10})
		require.NoError(t, err)
		// The window cannot advance, so exactly one chunk comes back.
		assert.Len(t, chunks, 1)
	})
}

func TestRecursiveChunker(t *testing.T) {
	chunker := NewRecursiveChunker()

	t.Run("short text is a single chunk", func(t *testing.T) {
		chunks, err := chunker.Chunk("Short text", Config{MaxTokens: 100})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "Short text", chunks[0].Content)
	})

	t.Run("prefers paragraph boundaries", func(t *testing.T) {
		para1 := "First paragraph with enough words to stand on its own for this test."
		para2 := "Second paragraph, also with a reasonable amount of content inside it."
		chunks, err := chunker.Chunk(para1+"\n\n"+para2, Config{MaxTokens: 20})
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, para1, chunks[0].Content)
		assert.Equal(t, para2, chunks[1].Content)
	})

	t.Run("recurses into oversized paragraphs", func(t *testing.T) {
		oversized := strings.Repeat("sentence words here. ", 30)
		chunks, err := chunker.Chunk(oversized, Config{MaxTokens: 10})
		require.NoError(t, err)
		assert.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, chunk.TokenCount, 10)
		}
	})

	t.Run("hard-cuts unbreakable text", func(t *testing.T) {
		unbreakable := strings.Repeat("x", 200)
		chunks, err := chunker.Chunk(unbreakable, Config{MaxTokens: 10})
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, chunk.TokenCount, 10)
		}
	})

	t.Run("overlap tail is prepended", func(t *testing.T) {
		para1 := "First paragraph with enough words to stand on its own for this test."
		para2 := "Second paragraph, also with a reasonable amount of content inside it."
		chunks, err := chunker.Chunk(para1+"\n\n"+para2, Config{MaxTokens: 20, Overlap: 3})
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		tail := para1[len(para1)-12:] // 3 tokens × 4 chars
		assert.True(t, strings.HasPrefix(chunks[1].Content, tail))
		assert.Equal(t, 3, chunks[1].Metadata.OverlapTokens)
		assert.Zero(t, chunks[0].Metadata.OverlapTokens)
	})
}

func TestSentenceChunker(t *testing.T) {
	chunker := NewSentenceChunker()

	t.Run("splits on sentence boundaries", func(t *testing.T) {
		input := "First sentence is right here. Second sentence takes its turn! Third sentence asks a question? Fourth wraps up."
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 8})
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		// Sentences stay whole: each chunk ends at terminal punctuation.
		for _, chunk := range chunks {
			last := chunk.Content[len(chunk.Content)-1]
			assert.Contains(t, ".!?", string(last), "chunk %q", chunk.Content)
		}
	})

	t.Run("no boundary yields one chunk", func(t *testing.T) {
		input := "a single run of words without terminal punctuation at all"
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 100})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, input, chunks[0].Content)
	})

	t.Run("lowercase continuation is not a boundary", func(t *testing.T) {
		input := "He earned approx. three points. Dr. Smith disagreed."
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 100})
		require.NoError(t, err)
		// "approx. three" must not split; everything fits one chunk anyway.
		require.Len(t, chunks, 1)
	})
}

func TestSemanticChunker(t *testing.T) {
	chunker := NewSemanticChunker()

	t.Run("empty input", func(t *testing.T) {
		chunks, err := chunker.Chunk("", Config{MaxTokens: 100})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("single paragraph", func(t *testing.T) {
		para := "One paragraph of text that easily fits inside the configured budget."
		chunks, err := chunker.Chunk(para, Config{MaxTokens: 100})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, para, chunks[0].Content)
	})

	t.Run("paragraphs accumulate up to budget", func(t *testing.T) {
		paras := []string{
			"Paragraph one is small.",
			"Paragraph two is also small.",
			"Paragraph three is the last of the small ones.",
		}
		input := strings.Join(paras, "\n\n")

		// Budget fits all three together.
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 100})
		require.NoError(t, err)
		require.Len(t, chunks, 1)

		// Budget fits only one at a time.
		chunks, err = chunker.Chunk(input, Config{MaxTokens: 8})
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		for i, chunk := range chunks {
			assert.Equal(t, paras[i], chunk.Content)
		}
	})

	t.Run("short previous paragraph caps recorded overlap", func(t *testing.T) {
		para1 := "Hi."
		para2 := "Second paragraph, long enough to stand alone in its own chunk."
		chunks, err := chunker.Chunk(para1+"\n\n"+para2, Config{MaxTokens: 16, Overlap: 5})
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		// The whole 3-rune paragraph is the carried tail: one token, not
		// the configured five.
		assert.True(t, strings.HasPrefix(chunks[1].Content, para1))
		assert.Equal(t, EstimateTokens(para1), chunks[1].Metadata.OverlapTokens)
		assert.Equal(t, 1, chunks[1].Metadata.OverlapTokens)
	})

	t.Run("offsets track the original text", func(t *testing.T) {
		input := "First paragraph here.\n\n\nSecond paragraph there."
		chunks, err := chunker.Chunk(input, Config{MaxTokens: 6})
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		assert.Equal(t, 0, chunks[0].Metadata.StartChar)
		assert.Equal(t, len("First paragraph here."), chunks[0].Metadata.EndChar)
		assert.Equal(t, strings.Index(input, "Second"), chunks[1].Metadata.StartChar)
	})
}

func TestNewFactory(t *testing.T) {
	t.Run("known strategies", func(t *testing.T) {
		for name, want := range map[string]interface{}{
			StrategyFixed:     (*FixedChunker)(nil),
			StrategyRecursive: (*RecursiveChunker)(nil),
			StrategySentence:  (*SentenceChunker)(nil),
			StrategySemantic:  (*SemanticChunker)(nil),
		} {
			c, err := New(name)
			require.NoError(t, err)
			assert.IsType(t, want, c)
		}
	})

	t.Run("empty defaults to recursive", func(t *testing.T) {
		c, err := New("")
		require.NoError(t, err)
		assert.IsType(t, (*RecursiveChunker)(nil), c)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := New("quantum")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownStrategy)
		assert.Contains(t, err.Error(), "quantum")
	})
}
