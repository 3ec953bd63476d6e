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
)

// cohereBatchLimit is the maximum texts per /v2/embed request.
const cohereBatchLimit = 96

// cohereModelDimensions maps Cohere embed models to their output dimension.
var cohereModelDimensions = map[string]int{
	"embed-english-v3.0":            1024,
	"embed-multilingual-v3.0":       1024,
	"embed-english-light-v3.0":      384,
	"embed-multilingual-light-v3.0": 384,
}

// CohereConfig holds configuration for the hosted Cohere provider.
type CohereConfig struct {
	// APIKey authenticates against the Cohere API.
	APIKey string `koanf:"api_key"`
	// Model is the embed model name. Defaults to embed-english-v3.0.
	Model string `koanf:"model"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `koanf:"base_url"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `koanf:"timeout"`
}

// Validate validates the configuration.
func (c CohereConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: cohere api key is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults fills in zero-valued optional fields.
func (c *CohereConfig) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "embed-english-v3.0"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.cohere.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// CohereProvider generates embeddings through the hosted Cohere API.
type CohereProvider struct {
	config     CohereConfig
	client     *http.Client
	dimensions int
	metrics    *Metrics
	logger     *zap.Logger
}

// NewCohereProvider creates a provider for the hosted Cohere API.
func NewCohereProvider(config CohereConfig, logger *zap.Logger) (*CohereProvider, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dims, ok := cohereModelDimensions[config.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unknown cohere model %q", ErrInvalidConfig, config.Model)
	}

	return &CohereProvider{
		config:     config,
		client:     &http.Client{Timeout: config.Timeout},
		dimensions: dims,
		metrics:    NewMetrics(logger),
		logger:     logger,
	}, nil
}

type cohereRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type cohereResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
	Meta struct {
		BilledUnits struct {
			InputTokens int `json:"input_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Embed generates an embedding for a single text.
func (p *CohereProvider) Embed(ctx context.Context, text string, inputType InputType) (*Result, error) {
	return p.BatchEmbed(ctx, []string{text}, inputType)
}

// BatchEmbed generates embeddings for texts, sub-batching at the API's
// ceiling and concatenating results in input order.
func (p *CohereProvider) BatchEmbed(ctx context.Context, texts []string, inputType InputType) (*Result, error) {
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
		Dimensions: p.dimensions,
	}
	for offset := 0; offset < len(texts); offset += cohereBatchLimit {
		end := offset + cohereBatchLimit
		if end > len(texts) {
			end = len(texts)
		}
		vectors, tokens, err := p.embedBatch(ctx, texts[offset:end], inputType)
		if err != nil {
			genErr = err
			return nil, genErr
		}
		if len(vectors) != end-offset {
			genErr = fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, end-offset, len(vectors))
			return nil, genErr
		}
		result.Embeddings = append(result.Embeddings, vectors...)
		result.TokensUsed += tokens
	}
	return result, nil
}

func (p *CohereProvider) embedBatch(ctx context.Context, texts []string, inputType InputType) ([][]float32, int, error) {
	req := cohereRequest{
		Model:          p.config.Model,
		Texts:          texts,
		InputType:      string(inputType),
		EmbeddingTypes: []string{"float"},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/v2/embed", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, 0, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var decoded cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, 0, fmt.Errorf("decoding response: %w", err)
	}
	return decoded.Embeddings.Float, decoded.Meta.BilledUnits.InputTokens, nil
}

// HealthCheck embeds a probe text to verify the API is reachable.
func (p *CohereProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Embed(ctx, "health check", InputTypeQuery)
	return err
}

// Dimensions returns the embedding dimension for the configured model.
func (p *CohereProvider) Dimensions() int {
	return p.dimensions
}

// Model returns the configured model name.
func (p *CohereProvider) Model() string {
	return p.config.Model
}

// Close is a no-op since the provider only holds an HTTP client.
func (p *CohereProvider) Close() error {
	return nil
}

// Ensure CohereProvider implements Provider.
var _ Provider = (*CohereProvider)(nil)
