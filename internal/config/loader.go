// Package config provides configuration loading for ragd.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/ragd/internal/chunking"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

const maxConfigFileSize = 1024 * 1024

// envPrefix namespaces ragd environment variables.
const envPrefix = "RAGD_"

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (RAGD_EMBEDDINGS_PROVIDER, RAGD_VECTOR_STORE_BACKEND, ...)
//  2. YAML config file
//  3. Defaults
//
// An empty configPath skips the file and loads env over defaults only.
//
// Environment variables map the section on the first underscore and keep
// underscores inside field names:
//
// A double underscore descends into nested blocks:
//
//	RAGD_EMBEDDINGS_PROVIDER         -> embeddings.provider
//	RAGD_CHUNKING_MAX_TOKENS         -> chunking.max_tokens
//	RAGD_EMBEDDINGS_COHERE__API_KEY  -> embeddings.cohere.api_key
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		info, err := os.Stat(configPath)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envTransform maps RAGD_SECTION_FIELD_NAME to section.field_name. The
// vector_store and bge_m3 sections contain an underscore themselves, so
// they are matched longest-prefix first.
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	for _, section := range []string{"vector_store", "embeddings", "logging", "retry", "chunking"} {
		if strings.HasPrefix(lower, section+"_") {
			return section + "." + strings.ReplaceAll(strings.TrimPrefix(lower, section+"_"), "__", ".")
		}
	}
	return lower
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = embeddings.ProviderBGEM3
	}
	if cfg.Embeddings.Provider == embeddings.ProviderBGEM3 && cfg.Embeddings.BGEM3.BaseURL == "" {
		cfg.Embeddings.BGEM3.BaseURL = "http://localhost:8080"
	}

	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = vectorstore.BackendQdrant
	}
	if cfg.VectorStore.Backend == vectorstore.BackendQdrant && cfg.VectorStore.Qdrant.URL == "" {
		cfg.VectorStore.Qdrant.URL = "localhost:6334"
	}

	cfg.Retry.ApplyDefaults()

	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = chunking.StrategyRecursive
	}
	if cfg.Chunking.MaxTokens == 0 {
		cfg.Chunking.MaxTokens = 512
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 50
	}
}
