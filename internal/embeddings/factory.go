package embeddings

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider tags for Config.Provider.
const (
	ProviderCohere = "cohere"
	ProviderBGEM3  = "bge-m3"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider string       `koanf:"provider"`
	Cohere   CohereConfig `koanf:"cohere"`
	BGEM3    BGEM3Config  `koanf:"bge_m3"`
}

// Validate checks that the selected provider has its config block.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderCohere:
		if c.Cohere == (CohereConfig{}) {
			return fmt.Errorf("%w: cohere config is required", ErrInvalidConfig)
		}
		return c.Cohere.Validate()
	case ProviderBGEM3:
		if c.BGEM3 == (BGEM3Config{}) {
			return fmt.Errorf("%w: bge-m3 config is required", ErrInvalidConfig)
		}
		return c.BGEM3.Validate()
	case "":
		return fmt.Errorf("%w: embedding provider is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown embedding provider %q (supported: %s, %s)",
			ErrInvalidConfig, c.Provider, ProviderCohere, ProviderBGEM3)
	}
}

// New creates the embedding provider selected by config.Provider.
func New(config Config, logger *zap.Logger) (Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Provider {
	case ProviderCohere:
		return NewCohereProvider(config.Cohere, logger)
	case ProviderBGEM3:
		return NewBGEM3Provider(config.BGEM3, logger)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, config.Provider)
	}
}
