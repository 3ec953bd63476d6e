package vectorstore

import (
	"context"
	"fmt"
)

// Backend tags for Config.Backend.
const (
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
	BackendMemory   = "memory"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend  string         `koanf:"backend"`
	Qdrant   QdrantConfig   `koanf:"qdrant"`
	PgVector PgVectorConfig `koanf:"pgvector"`
}

// Validate checks the selected backend's configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendQdrant:
		return c.Qdrant.Validate()
	case BackendPgVector:
		return c.PgVector.Validate()
	case BackendMemory:
		return nil
	case "":
		return fmt.Errorf("%w: vector store backend is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown vector store backend %q (supported: %s, %s, %s)",
			ErrInvalidConfig, c.Backend, BackendQdrant, BackendPgVector, BackendMemory)
	}
}

// New creates the Store selected by config.Backend.
func New(ctx context.Context, config Config) (Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Backend {
	case BackendQdrant:
		return NewQdrantStore(config.Qdrant)
	case BackendPgVector:
		return NewPgVectorStore(ctx, config.PgVector)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store backend %q", ErrInvalidConfig, config.Backend)
	}
}
