package config

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunking"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/resilience"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String implements fmt.Stringer. Always returns redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the actual secret value. Use sparingly.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns redacted value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// MarshalText implements encoding.TextMarshaler. Always returns redacted value.
func (s Secret) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(""), nil
	}
	return []byte("[REDACTED]"), nil
}

// ChunkingConfig sets the project-wide chunking defaults. Requests may
// override strategy and budget per document.
type ChunkingConfig struct {
	Strategy  string `koanf:"strategy"`
	MaxTokens int    `koanf:"max_tokens"`
	Overlap   int    `koanf:"overlap"`
}

// Config is the full service configuration.
type Config struct {
	Logging     logging.Config     `koanf:"logging"`
	Embeddings  embeddings.Config  `koanf:"embeddings"`
	VectorStore vectorstore.Config `koanf:"vector_store"`
	Retry       resilience.Config  `koanf:"retry"`
	Chunking    ChunkingConfig     `koanf:"chunking"`
}

// Validate validates the component configurations.
func (c *Config) Validate() error {
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if err := c.VectorStore.Validate(); err != nil {
		return fmt.Errorf("vector_store: %w", err)
	}
	if c.Chunking.Strategy != "" {
		if _, err := chunking.New(c.Chunking.Strategy); err != nil {
			return fmt.Errorf("chunking: %w", err)
		}
	}
	cfg := chunking.Config{MaxTokens: c.Chunking.MaxTokens, Overlap: c.Chunking.Overlap}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	return nil
}

// Summary returns startup log fields with secrets redacted.
func (c *Config) Summary() []zap.Field {
	return []zap.Field{
		zap.String("embedding_provider", c.Embeddings.Provider),
		zap.String("cohere_api_key", Secret(c.Embeddings.Cohere.APIKey).String()),
		zap.String("vector_store_backend", c.VectorStore.Backend),
		zap.String("chunking_strategy", c.Chunking.Strategy),
		zap.Int("chunking_max_tokens", c.Chunking.MaxTokens),
		zap.Int("chunking_overlap", c.Chunking.Overlap),
	}
}
