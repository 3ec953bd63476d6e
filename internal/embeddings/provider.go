// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// StatusError reports a non-2xx provider response with its HTTP status,
// so retry wrappers can tell client errors from server errors.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", ErrEmbeddingFailed, e.Code, e.Body)
}

// Unwrap makes errors.Is(err, ErrEmbeddingFailed) hold.
func (e *StatusError) Unwrap() error { return ErrEmbeddingFailed }

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int { return e.Code }

// InputType tells the provider whether texts are being indexed or used as
// a search query. Providers that don't distinguish ignore it.
type InputType string

const (
	// InputTypeDocument marks texts being embedded for indexing.
	InputTypeDocument InputType = "search_document"
	// InputTypeQuery marks a search query being embedded for retrieval.
	InputTypeQuery InputType = "search_query"
)

// Result is the outcome of one embedding call. Embeddings[i] corresponds
// positionally to the i-th input text.
type Result struct {
	Embeddings [][]float32
	Model      string
	TokensUsed int
	Dimensions int
}

// Provider generates embeddings for text.
//
// BatchEmbed handles provider batch-size ceilings internally: callers may
// pass any number of texts and get results concatenated in input order.
// Providers fail loudly on transport errors rather than return partial
// batches.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string, inputType InputType) (*Result, error)
	// BatchEmbed generates embeddings for multiple texts in input order.
	BatchEmbed(ctx context.Context, texts []string, inputType InputType) (*Result, error)
	// HealthCheck verifies the provider is reachable.
	HealthCheck(ctx context.Context) error
	// Dimensions returns the fixed embedding dimension for the configured model.
	Dimensions() int
	// Model returns the configured model name.
	Model() string
	// Close releases resources held by the provider.
	Close() error
}
