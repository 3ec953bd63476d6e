// Package vectorstore defines the tenant-isolated vector storage interface
// and its adapters.
//
// Every adapter enforces the same search contract: the effective filter is
// the logical AND of tenant match, project match, visibility = visible, and
// the caller's optional document filter. The tenant/project check lives in
// the adapters themselves, not only in callers — it is the single most
// safety-critical invariant in the system.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid adapter configuration.
	ErrInvalidConfig = errors.New("invalid vector store configuration")

	// ErrIsolationViolation indicates a privileged operation attempted
	// without full tenant/project scope. Always a hard error, never a
	// degraded query.
	ErrIsolationViolation = errors.New("tenant isolation violation")

	// ErrInvalidRecord indicates a record missing required fields.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidQuery indicates malformed search parameters.
	ErrInvalidQuery = errors.New("invalid search parameters")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrConnectionFailed indicates the backing store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// collectionNamePattern validates collection names.
// Lowercase letters, numbers, underscores, 1-64 characters. The same rule is
// applied by every adapter; for the relational adapter it doubles as the
// guard that keeps collection names safe to splice into identifiers.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against the shared rules.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Store is the interface for tenant-isolated vector storage.
//
// Implementations:
//   - QdrantStore: external Qdrant server over gRPC
//   - PgvectorStore: PostgreSQL with the pgvector extension
//   - MemoryStore: embedded in-process store (tests, local development)
type Store interface {
	// EnsureCollection creates the backing collection with the given vector
	// dimensions and scope indexes if it does not already exist. A no-op is
	// acceptable for relational backends whose schema is managed externally.
	EnsureCollection(ctx context.Context, collection string, dimensions int) error

	// Upsert writes records, idempotent by record ID (last writer wins).
	// Large batches are split into provider-safe sizes internally.
	Upsert(ctx context.Context, collection string, records []Record) error

	// Search performs similarity search scoped to exactly one tenant and
	// project. Missing scope is rejected with ErrIsolationViolation before
	// any query is issued. Results are ordered by descending score,
	// trimmed by params.ScoreThreshold when positive.
	Search(ctx context.Context, collection string, params SearchParams) ([]ScoredResult, error)

	// Delete removes records by ID, scoped to the tenant. IDs belonging to
	// other tenants are left untouched.
	Delete(ctx context.Context, collection, tenantID string, ids []string) error

	// DeleteByFilter removes records matching the selector, always scoped
	// to the tenant at minimum.
	DeleteByFilter(ctx context.Context, collection, tenantID string, sel DeleteSelector) error

	// SetVisibility flips the visibility of one document's records,
	// tenant-scoped. This is the second phase of the two-phase write: the
	// external transactional caller invokes it after the relational commit.
	// Idempotent.
	SetVisibility(ctx context.Context, collection, tenantID, documentID string, visibility Visibility) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
