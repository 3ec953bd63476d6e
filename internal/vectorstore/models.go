package vectorstore

import "fmt"

// Visibility is the lifecycle state of a stored vector record.
//
// Records are written Hidden by the ingestion pipeline and flipped Visible by
// the external transactional caller only after the authoritative relational
// record commits. Search returns Visible records only, ever. Deleted marks a
// record awaiting hard deletion by the delete workflow.
type Visibility string

const (
	// VisibilityHidden means the record exists but is never returned by search.
	VisibilityHidden Visibility = "hidden"

	// VisibilityVisible means the record is searchable.
	VisibilityVisible Visibility = "visible"

	// VisibilityDeleted means the record is scheduled for hard deletion.
	VisibilityDeleted Visibility = "deleted"
)

// Valid reports whether v is a known visibility state.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityHidden, VisibilityVisible, VisibilityDeleted:
		return true
	}
	return false
}

// Payload keys every adapter writes alongside the vector. The scope keys
// (tenant, project) are what the mandatory search filter matches on.
const (
	payloadKeyTenant     = "tenant_id"
	payloadKeyProject    = "project_id"
	payloadKeyDocument   = "document_id"
	payloadKeyChunk      = "chunk_id"
	payloadKeyVisibility = "visibility"
	payloadKeyContent    = PayloadContent
)

// PayloadContent is the payload field adapters surface as ScoredResult.Content.
// Writers put the chunk text here.
const PayloadContent = "content"

// Record is a tenant- and project-scoped vector with its payload.
type Record struct {
	// ID uniquely identifies the record. Upsert is idempotent by ID.
	ID string

	// TenantID is the owning tenant. Required.
	TenantID string

	// ProjectID is the owning project within the tenant. Required.
	ProjectID string

	// DocumentID is the source document. Required.
	DocumentID string

	// ChunkID identifies the chunk within the document.
	ChunkID string

	// Vector is the embedding. Its length must match the collection dimensions.
	Vector []float32

	// Payload carries chunk content and metadata for retrieval.
	Payload map[string]interface{}

	// Visibility is the record's lifecycle state.
	Visibility Visibility
}

// Validate checks that the record carries everything an adapter needs.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidRecord)
	}
	if r.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidRecord)
	}
	if r.ProjectID == "" {
		return fmt.Errorf("%w: project id is required", ErrInvalidRecord)
	}
	if r.DocumentID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidRecord)
	}
	if len(r.Vector) == 0 {
		return fmt.Errorf("%w: vector is required", ErrInvalidRecord)
	}
	if !r.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidRecord, r.Visibility)
	}
	return nil
}

// QueryFilter narrows a search beyond the mandatory tenant/project scope.
//
// Only the fields here may influence the store query; anything else a caller
// sends must be rejected by the filter validator before it gets near an
// adapter.
type QueryFilter struct {
	// DocumentIDs restricts results to these documents when non-empty.
	DocumentIDs []string

	// Metadata matches payload fields exactly. The adapters match string
	// values only; other value types are ignored.
	Metadata map[string]interface{}
}

// SearchParams describes one similarity search.
type SearchParams struct {
	// TenantID scopes the search. Required; an empty value is an isolation
	// violation, never a wildcard.
	TenantID string

	// ProjectID scopes the search within the tenant. Required, same rule.
	ProjectID string

	// Vector is the query embedding.
	Vector []float32

	// TopK is the maximum number of results.
	TopK int

	// ScoreThreshold trims results scoring below it when positive.
	ScoreThreshold float32

	// Filter optionally narrows the search further.
	Filter *QueryFilter
}

// Validate enforces the scope invariant before any adapter work happens.
//
// A missing tenant or project is deliberately a hard error rather than a
// wider search: silently widening scope would be a tenant-isolation breach.
func (p SearchParams) Validate() error {
	if p.TenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
	}
	if p.ProjectID == "" {
		return fmt.Errorf("%w: project id is required", ErrIsolationViolation)
	}
	if len(p.Vector) == 0 {
		return fmt.Errorf("%w: query vector is required", ErrInvalidQuery)
	}
	if p.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidQuery, p.TopK)
	}
	return nil
}

// DeleteSelector narrows DeleteByFilter beyond the mandatory tenant scope.
type DeleteSelector struct {
	// DocumentID removes one document's records when set.
	DocumentID string

	// ProjectID restricts deletion to one project when set.
	ProjectID string
}

// ScoredResult is a read-only projection of a record plus its similarity
// score. Never persisted.
type ScoredResult struct {
	ID         string
	DocumentID string
	ChunkID    string
	Content    string
	Score      float32
	Payload    map[string]interface{}
}
