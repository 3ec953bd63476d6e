// Package retrieval orchestrates the read path: validate the filter,
// embed the query, search the store under forced tenant/project scope,
// and assemble a model-targeted context block.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/collections"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var tracer = otel.Tracer("ragd.retrieval")

var (
	// ErrInvalidQuery indicates a malformed retrieval request.
	ErrInvalidQuery = errors.New("invalid retrieval query")

	// ErrNoQueryVector indicates the provider returned no embedding for
	// the query text. Terminal for the request; never retried here.
	ErrNoQueryVector = errors.New("no embedding returned for query")
)

// defaultTopK applies when the query does not set TopK.
const defaultTopK = 10

// Query describes one retrieval request. Tenant and project scope comes
// from here, never from filter content.
type Query struct {
	TenantID  string
	ProjectID string
	Text      string
	// TopK bounds the number of results. Zero uses the default.
	TopK int
	// ScoreThreshold trims results below the given similarity when > 0.
	ScoreThreshold float32
	// Filter is the caller's raw filter, validated before use.
	Filter map[string]interface{}
	// TargetModel selects the context format. Empty means generic.
	TargetModel string
	// IncludeMetadata opts into full payloads on returned chunks.
	IncludeMetadata bool
}

// Validate checks required fields.
func (q Query) Validate() error {
	if q.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", vectorstore.ErrIsolationViolation)
	}
	if q.ProjectID == "" {
		return fmt.Errorf("%w: project id is required", vectorstore.ErrIsolationViolation)
	}
	if q.Text == "" {
		return fmt.Errorf("%w: query text is required", ErrInvalidQuery)
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top k must not be negative", ErrInvalidQuery)
	}
	return nil
}

// Metadata describes how a retrieval was served.
type Metadata struct {
	TotalChunksSearched int   `json:"totalChunksSearched"`
	RetrievalTimeMs     int64 `json:"retrievalTimeMs"`
	CacheHit            bool  `json:"cacheHit"`
	TokensUsed          int   `json:"tokensUsed"`
}

// Response is the outcome of one retrieval.
type Response struct {
	Chunks   []ScoredChunk `json:"chunks"`
	Context  string        `json:"context"`
	Metadata Metadata      `json:"metadata"`
}

// Pipeline runs the read path. Safe for concurrent use across tenants.
type Pipeline struct {
	provider embeddings.Provider
	store    vectorstore.Store
	logger   *zap.Logger
}

// NewPipeline creates a retrieval pipeline.
func NewPipeline(provider embeddings.Provider, store vectorstore.Store, logger *zap.Logger) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", ErrInvalidQuery)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrInvalidQuery)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{provider: provider, store: store, logger: logger}, nil
}

// Retrieve validates, embeds, searches, and assembles. Any step's failure
// aborts the request.
func (p *Pipeline) Retrieve(ctx context.Context, query Query) (*Response, error) {
	ctx, span := tracer.Start(ctx, "retrieval.query",
		trace.WithAttributes(
			attribute.String("tenant_id", query.TenantID),
			attribute.String("target_model", query.TargetModel),
		))
	defer span.End()

	start := time.Now()

	if err := query.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	filter, err := ValidateFilter(query.Filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	embedded, err := p.provider.Embed(ctx, query.Text, embeddings.InputTypeQuery)
	if err != nil {
		err = fmt.Errorf("embedding query: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(embedded.Embeddings) == 0 || len(embedded.Embeddings[0]) == 0 {
		span.RecordError(ErrNoQueryVector)
		span.SetStatus(codes.Error, ErrNoQueryVector.Error())
		return nil, ErrNoQueryVector
	}

	collection, err := collections.GenerateName(query.TenantID, query.ProjectID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	topK := query.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	params := vectorstore.SearchParams{
		TenantID:       query.TenantID,
		ProjectID:      query.ProjectID,
		Vector:         embedded.Embeddings[0],
		TopK:           topK,
		ScoreThreshold: query.ScoreThreshold,
		Filter:         filter,
	}

	results, err := p.store.Search(ctx, collection, params)
	if err != nil {
		// A project that never ingested anything has no collection yet;
		// that's an empty result set, not a failure.
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			err = fmt.Errorf("searching collection %s: %w", collection, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		results = nil
	}

	chunks := make([]ScoredChunk, len(results))
	for i, res := range results {
		chunks[i] = ScoredChunk{
			ChunkID:    res.ChunkID,
			DocumentID: res.DocumentID,
			Content:    res.Content,
			Score:      res.Score,
		}
		if query.IncludeMetadata {
			chunks[i].Metadata = res.Payload
		}
	}

	response := &Response{
		Chunks:  chunks,
		Context: Assemble(chunks, query.TargetModel),
		Metadata: Metadata{
			TotalChunksSearched: len(results),
			RetrievalTimeMs:     time.Since(start).Milliseconds(),
			CacheHit:            false,
			TokensUsed:          embedded.TokensUsed,
		},
	}

	p.logger.Debug("retrieval served",
		zap.String("tenant_id", query.TenantID),
		zap.String("collection", collection),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)))
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	span.SetStatus(codes.Ok, "success")
	return response, nil
}
