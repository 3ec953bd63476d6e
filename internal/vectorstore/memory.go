package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an embedded, in-process Store.
//
// It exists for tests and local development: the full search contract —
// scope enforcement, visibility filtering, score threshold, idempotent
// upsert — behaves exactly like the networked adapters, just without a
// server. Not meant for production data volumes.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimensions int
	records    map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// EnsureCollection creates the collection if it does not already exist.
func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, dimensions int) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidConfig, dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = &memoryCollection{
			dimensions: dimensions,
			records:    make(map[string]Record),
		}
	}
	return nil
}

func (s *MemoryStore) getCollection(collection string) (*memoryCollection, error) {
	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return col, nil
}

// Upsert writes records, last writer wins per ID.
func (s *MemoryStore) Upsert(_ context.Context, collection string, records []Record) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if len(rec.Vector) != col.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, collection %s expects %d",
				ErrInvalidRecord, rec.ID, len(rec.Vector), collection, col.dimensions)
		}
		col.records[rec.ID] = rec
	}
	return nil
}

// Search performs scoped cosine-similarity search over visible records.
func (s *MemoryStore) Search(_ context.Context, collection string, params SearchParams) ([]ScoredResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if params.Filter != nil {
		for key, value := range params.Filter.Metadata {
			if _, ok := value.(string); !ok {
				return nil, fmt.Errorf("%w: metadata filter value for %q must be a string, got %T", ErrInvalidQuery, key, value)
			}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	col, err := s.getCollection(collection)
	if err != nil {
		return nil, err
	}

	var results []ScoredResult
	for _, rec := range col.records {
		if !recordMatches(rec, params) {
			continue
		}
		score := cosineSimilarity(params.Vector, rec.Vector)
		if params.ScoreThreshold > 0 && score < params.ScoreThreshold {
			continue
		}
		results = append(results, ScoredResult{
			ID:         rec.ID,
			DocumentID: rec.DocumentID,
			ChunkID:    rec.ChunkID,
			Content:    payloadString(rec.Payload, payloadKeyContent),
			Score:      score,
			Payload:    rec.Payload,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > params.TopK {
		results = results[:params.TopK]
	}
	return results, nil
}

// recordMatches applies the search contract: tenant AND project AND visible
// AND optional document/metadata filter.
func recordMatches(rec Record, params SearchParams) bool {
	if rec.TenantID != params.TenantID || rec.ProjectID != params.ProjectID {
		return false
	}
	if rec.Visibility != VisibilityVisible {
		return false
	}
	if params.Filter == nil {
		return true
	}
	if len(params.Filter.DocumentIDs) > 0 {
		found := false
		for _, id := range params.Filter.DocumentIDs {
			if rec.DocumentID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for key, want := range params.Filter.Metadata {
		// Search rejects non-string values before matching; a non-string
		// reaching here never matches rather than matching everything.
		wantStr, ok := want.(string)
		if !ok {
			return false
		}
		if payloadString(rec.Payload, key) != wantStr {
			return false
		}
	}
	return true
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Mismatched lengths or zero vectors score zero.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Delete removes records by ID, scoped to the tenant.
func (s *MemoryStore) Delete(_ context.Context, collection, tenantID string, ids []string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if rec, ok := col.records[id]; ok && rec.TenantID == tenantID {
			delete(col.records, id)
		}
	}
	return nil
}

// DeleteByFilter removes records matching the selector, tenant-scoped.
func (s *MemoryStore) DeleteByFilter(_ context.Context, collection, tenantID string, sel DeleteSelector) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}
	for id, rec := range col.records {
		if rec.TenantID != tenantID {
			continue
		}
		if sel.ProjectID != "" && rec.ProjectID != sel.ProjectID {
			continue
		}
		if sel.DocumentID != "" && rec.DocumentID != sel.DocumentID {
			continue
		}
		delete(col.records, id)
	}
	return nil
}

// SetVisibility flips visibility for one document's records, tenant-scoped.
func (s *MemoryStore) SetVisibility(_ context.Context, collection, tenantID, documentID string, visibility Visibility) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
	}
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidQuery)
	}
	if !visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidQuery, visibility)
	}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}
	for id, rec := range col.records {
		if rec.TenantID == tenantID && rec.DocumentID == documentID {
			rec.Visibility = visibility
			col.records[id] = rec
		}
	}
	return nil
}

// HealthCheck always succeeds for the embedded store.
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

// Close is a no-op for the embedded store.
func (s *MemoryStore) Close() error { return nil }

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
