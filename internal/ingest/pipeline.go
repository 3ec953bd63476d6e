// Package ingest orchestrates the document write path: parse, chunk,
// embed, and store vectors hidden.
//
// Records are written with visibility "hidden"; flipping them visible is
// the caller's job after its authoritative transaction commits. A crash
// between upsert and the flip leaves hidden vectors that a re-ingestion of
// the same document reclaims, because record IDs are deterministic and
// upsert is idempotent.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunking"
	"github.com/fyrsmithlabs/ragd/internal/collections"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var tracer = otel.Tracer("ragd.ingest")

var (
	// ErrInvalidRequest indicates a request missing required scope fields.
	ErrInvalidRequest = errors.New("invalid ingestion request")

	// ErrEmbeddingMismatch indicates the provider returned a different
	// number of vectors than texts sent.
	ErrEmbeddingMismatch = errors.New("embedding count does not match chunk count")
)

// Request describes one document to ingest.
type Request struct {
	TenantID   string
	ProjectID  string
	DocumentID string
	Content    []byte
	MimeType   string
	// Strategy selects the chunker. Empty uses the default strategy.
	Strategy string
	Chunking chunking.Config
}

// Validate checks required fields.
func (r Request) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidRequest)
	}
	if r.ProjectID == "" {
		return fmt.Errorf("%w: project id is required", ErrInvalidRequest)
	}
	if r.DocumentID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidRequest)
	}
	return nil
}

// Result summarizes a completed ingestion.
type Result struct {
	DocumentID          string
	ChunkCount          int
	TokensUsed          int
	EmbeddingDimensions int
}

// Hooks observe pipeline phases for metrics and logging. Nil hooks are
// skipped; hooks never affect control flow.
type Hooks struct {
	OnParsed   func(ctx context.Context, parsed *ParseResult)
	OnChunked  func(ctx context.Context, chunks []chunking.Chunk)
	OnEmbedded func(ctx context.Context, result *embeddings.Result)
	OnStored   func(ctx context.Context, recordCount int)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHooks installs lifecycle hooks.
func WithHooks(hooks Hooks) Option {
	return func(p *Pipeline) { p.hooks = hooks }
}

// Pipeline runs the write path for one document at a time. Safe for
// concurrent use across documents and tenants.
type Pipeline struct {
	parser   Parser
	provider embeddings.Provider
	store    vectorstore.Store
	logger   *zap.Logger
	hooks    Hooks
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(parser Parser, provider embeddings.Provider, store vectorstore.Store, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if parser == nil {
		return nil, fmt.Errorf("%w: parser is required", ErrInvalidRequest)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", ErrInvalidRequest)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrInvalidRequest)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		parser:   parser,
		provider: provider,
		store:    store,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest runs Parse, Chunk, Embed, Upsert for one document. All records
// land hidden. Any step's failure aborts the rest; nothing is retried here.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ingest.document",
		trace.WithAttributes(
			attribute.String("tenant_id", req.TenantID),
			attribute.String("document_id", req.DocumentID),
			attribute.String("strategy", req.Strategy),
		))
	defer span.End()

	start := time.Now()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	chunker, err := chunking.New(req.Strategy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	parsed, err := p.parser.Parse(ctx, req.Content, req.MimeType)
	if err != nil {
		err = fmt.Errorf("parsing document %s: %w", req.DocumentID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if p.hooks.OnParsed != nil {
		p.hooks.OnParsed(ctx, parsed)
	}

	chunks, err := chunker.Chunk(parsed.Text, req.Chunking)
	if err != nil {
		err = fmt.Errorf("chunking document %s: %w", req.DocumentID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if p.hooks.OnChunked != nil {
		p.hooks.OnChunked(ctx, chunks)
	}

	// Empty documents are a zero-effect success, not an error.
	if len(chunks) == 0 {
		p.logger.Info("document produced no chunks",
			zap.String("document_id", req.DocumentID),
			zap.String("tenant_id", req.TenantID))
		span.SetStatus(codes.Ok, "success")
		return &Result{
			DocumentID:          req.DocumentID,
			EmbeddingDimensions: p.provider.Dimensions(),
		}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embedded, err := p.provider.BatchEmbed(ctx, texts, embeddings.InputTypeDocument)
	if err != nil {
		err = fmt.Errorf("embedding document %s: %w", req.DocumentID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(embedded.Embeddings) != len(chunks) {
		err = fmt.Errorf("%w: %d chunks, %d embeddings", ErrEmbeddingMismatch, len(chunks), len(embedded.Embeddings))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if p.hooks.OnEmbedded != nil {
		p.hooks.OnEmbedded(ctx, embedded)
	}

	collection, err := collections.GenerateName(req.TenantID, req.ProjectID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := p.store.EnsureCollection(ctx, collection, embedded.Dimensions); err != nil {
		err = fmt.Errorf("ensuring collection %s: %w", collection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	records := buildRecords(req, parsed, chunks, embedded.Embeddings)
	if err := p.store.Upsert(ctx, collection, records); err != nil {
		err = fmt.Errorf("upserting document %s: %w", req.DocumentID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if p.hooks.OnStored != nil {
		p.hooks.OnStored(ctx, len(records))
	}

	p.logger.Info("document ingested hidden",
		zap.String("document_id", req.DocumentID),
		zap.String("tenant_id", req.TenantID),
		zap.String("collection", collection),
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens_used", embedded.TokensUsed),
		zap.Duration("duration", time.Since(start)))
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	span.SetStatus(codes.Ok, "success")

	return &Result{
		DocumentID:          req.DocumentID,
		ChunkCount:          len(chunks),
		TokensUsed:          embedded.TokensUsed,
		EmbeddingDimensions: embedded.Dimensions,
	}, nil
}

// RecordID derives the deterministic vector record ID for one chunk of a
// document. Re-ingesting the same document overwrites its own records.
func RecordID(tenantID, projectID, documentID string, chunkIndex int) string {
	key := fmt.Sprintf("%s:%s:%s:%d", tenantID, projectID, documentID, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func buildRecords(req Request, parsed *ParseResult, chunks []chunking.Chunk, vectors [][]float32) []vectorstore.Record {
	records := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		payload := make(map[string]interface{}, len(parsed.Metadata)+8)
		for k, v := range parsed.Metadata {
			payload[k] = v
		}
		payload[vectorstore.PayloadContent] = chunk.Content
		payload["chunk_index"] = chunk.Index
		payload["token_count"] = chunk.TokenCount
		payload["start_char"] = chunk.Metadata.StartChar
		payload["end_char"] = chunk.Metadata.EndChar
		payload["overlap_tokens"] = chunk.Metadata.OverlapTokens
		if chunk.Metadata.PageNumber != nil {
			payload["page_number"] = *chunk.Metadata.PageNumber
		}
		if chunk.Metadata.SectionTitle != "" {
			payload["section_title"] = chunk.Metadata.SectionTitle
		}

		records[i] = vectorstore.Record{
			ID:         RecordID(req.TenantID, req.ProjectID, req.DocumentID, chunk.Index),
			TenantID:   req.TenantID,
			ProjectID:  req.ProjectID,
			DocumentID: req.DocumentID,
			ChunkID:    fmt.Sprintf("%s:%d", req.DocumentID, chunk.Index),
			Vector:     vectors[i],
			Payload:    payload,
			Visibility: vectorstore.VisibilityHidden,
		}
	}
	return records
}
