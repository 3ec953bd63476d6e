package chunking

import "fmt"

// Strategy names accepted by New.
const (
	StrategyFixed     = "fixed"
	StrategyRecursive = "recursive"
	StrategySentence  = "sentence"
	StrategySemantic  = "semantic"
)

// New creates a Chunker for the named strategy.
//
// Unknown strategy names are a configuration error rejected here, at
// construction time, never at chunk time.
func New(strategy string) (Chunker, error) {
	switch strategy {
	case StrategyFixed:
		return NewFixedChunker(), nil
	case StrategyRecursive, "":
		// Recursive is the default: it degrades gracefully across prose,
		// code, and tables.
		return NewRecursiveChunker(), nil
	case StrategySentence:
		return NewSentenceChunker(), nil
	case StrategySemantic:
		return NewSemanticChunker(), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: fixed, recursive, sentence, semantic)", ErrUnknownStrategy, strategy)
	}
}
