package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunking"
)

// bgeM3Dimensions is the fixed output dimension of BAAI/bge-m3.
const bgeM3Dimensions = 1024

// bgeM3BatchLimit caps texts per request to a self-hosted server.
const bgeM3BatchLimit = 32

// BGEM3Config holds configuration for a self-hosted bge-m3 model server
// speaking the text-embeddings-inference API.
type BGEM3Config struct {
	// BaseURL is the model server endpoint.
	BaseURL string `koanf:"base_url"`
	// Model is reported in results. Defaults to BAAI/bge-m3.
	Model string `koanf:"model"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `koanf:"timeout"`
}

// Validate validates the configuration.
func (c BGEM3Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: bge-m3 base url is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults fills in zero-valued optional fields.
func (c *BGEM3Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "BAAI/bge-m3"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// BGEM3Provider generates embeddings through a self-hosted bge-m3 server.
// The server does not report token usage, so TokensUsed carries the same
// character-count estimate the chunkers budget with.
type BGEM3Provider struct {
	config  BGEM3Config
	client  *http.Client
	metrics *Metrics
	logger  *zap.Logger
}

// NewBGEM3Provider creates a provider for a self-hosted bge-m3 server.
func NewBGEM3Provider(config BGEM3Config, logger *zap.Logger) (*BGEM3Provider, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BGEM3Provider{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		metrics: NewMetrics(logger),
		logger:  logger,
	}, nil
}

type bgeM3Request struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// Embed generates an embedding for a single text.
func (p *BGEM3Provider) Embed(ctx context.Context, text string, inputType InputType) (*Result, error) {
	return p.BatchEmbed(ctx, []string{text}, inputType)
}

// BatchEmbed generates embeddings for texts, sub-batching and concatenating
// results in input order. The input type is ignored; bge-m3 embeds queries
// and documents identically.
func (p *BGEM3Provider) BatchEmbed(ctx context.Context, texts []string, _ InputType) (*Result, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "batch_embed", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	result := &Result{
		Embeddings: make([][]float32, 0, len(texts)),
		Model:      p.config.Model,
		Dimensions: bgeM3Dimensions,
	}
	for offset := 0; offset < len(texts); offset += bgeM3BatchLimit {
		end := offset + bgeM3BatchLimit
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.embedBatch(ctx, texts[offset:end])
		if err != nil {
			genErr = err
			return nil, genErr
		}
		if len(vectors) != end-offset {
			genErr = fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, end-offset, len(vectors))
			return nil, genErr
		}
		result.Embeddings = append(result.Embeddings, vectors...)
	}
	for _, text := range texts {
		result.TokensUsed += chunking.EstimateTokens(text)
	}
	return result, nil
}

func (p *BGEM3Provider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(bgeM3Request{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return vectors, nil
}

// HealthCheck probes the server's health endpoint.
func (p *BGEM3Provider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", p.config.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrEmbeddingFailed, resp.StatusCode)
	}
	return nil
}

// Dimensions returns the fixed bge-m3 embedding dimension.
func (p *BGEM3Provider) Dimensions() int {
	return bgeM3Dimensions
}

// Model returns the configured model name.
func (p *BGEM3Provider) Model() string {
	return p.config.Model
}

// Close is a no-op since the provider only holds an HTTP client.
func (p *BGEM3Provider) Close() error {
	return nil
}

// Ensure BGEM3Provider implements Provider.
var _ Provider = (*BGEM3Provider)(nil)
