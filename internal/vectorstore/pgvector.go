package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var pgTracer = otel.Tracer("ragd.vectorstore.pgvector")

// PgVectorConfig configures the pgvector-backed Store.
type PgVectorConfig struct {
	// ConnString is a libpq connection string or URL.
	ConnString string `koanf:"conn_string"`
	// MaxConns bounds the connection pool. Zero uses the pool default.
	MaxConns int32 `koanf:"max_conns"`
	// UpsertBatchSize caps records per batched insert.
	UpsertBatchSize int `koanf:"upsert_batch_size"`
}

// Validate checks required fields.
func (c *PgVectorConfig) Validate() error {
	if c.ConnString == "" {
		return fmt.Errorf("%w: pgvector connection string is required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults fills in zero-valued optional fields.
func (c *PgVectorConfig) ApplyDefaults() {
	if c.UpsertBatchSize <= 0 {
		c.UpsertBatchSize = 256
	}
}

// PgVectorStore implements Store on PostgreSQL with the pgvector
// extension. Each collection maps to its own table; tenant scoping is
// enforced in every WHERE clause.
type PgVectorStore struct {
	pool   *pgxpool.Pool
	config PgVectorConfig
}

// NewPgVectorStore connects to PostgreSQL and verifies the pgvector
// extension is available.
func NewPgVectorStore(ctx context.Context, config PgVectorConfig) (*PgVectorStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	poolCfg, err := pgxpool.ParseConfig(config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection string: %v", ErrInvalidConfig, err)
	}
	if config.MaxConns > 0 {
		poolCfg.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrConnectionFailed, err)
	}
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: enable pgvector extension: %v", ErrConnectionFailed, err)
	}

	return &PgVectorStore{pool: pool, config: config}, nil
}

// HealthCheck pings the database.
func (s *PgVectorStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// EnsureCollection creates the collection table and its scope indexes if
// they do not already exist.
func (s *PgVectorStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	ctx, span := pgTracer.Start(ctx, "pgvector.ensure_collection",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("dimensions", dimensions),
		))
	defer span.End()

	if err := ValidateCollectionName(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if dimensions <= 0 {
		err := fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidConfig, dimensions)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// Collection names pass ValidateCollectionName ([a-z0-9_] only), so
	// direct interpolation into DDL is safe.
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id          uuid PRIMARY KEY,
    tenant_id   text NOT NULL,
    project_id  text NOT NULL,
    document_id text NOT NULL,
    chunk_id    text NOT NULL,
    embedding   vector(%d) NOT NULL,
    payload     jsonb NOT NULL DEFAULT '{}'::jsonb,
    visibility  text NOT NULL DEFAULT 'hidden'
)`, collection, dimensions)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		err = fmt.Errorf("create table %s: %w", collection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_scope_idx ON %s (tenant_id, project_id, visibility)`, collection, collection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (tenant_id, document_id)`, collection, collection),
	}
	for _, stmt := range indexes {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			err = fmt.Errorf("create index on %s: %w", collection, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// recordUUID maps a record ID to the uuid primary key. Record IDs are
// UUIDs by construction; anything else is hashed deterministically so the
// same record ID always lands on the same row.
func recordUUID(id string) uuid.UUID {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
}

// vectorLiteral renders a float32 slice as a pgvector input literal.
func vectorLiteral(vector []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Upsert writes records in batches, replacing existing rows by id.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, records []Record) error {
	ctx, span := pgTracer.Start(ctx, "pgvector.upsert",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("record_count", len(records)),
		))
	defer span.End()

	if err := ValidateCollectionName(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(records) == 0 {
		span.SetStatus(codes.Ok, "success")
		return nil
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			err = fmt.Errorf("record %d: %w", i, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	sql := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, project_id, document_id, chunk_id, embedding, payload, visibility)
VALUES ($1, $2, $3, $4, $5, $6::vector, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    tenant_id   = EXCLUDED.tenant_id,
    project_id  = EXCLUDED.project_id,
    document_id = EXCLUDED.document_id,
    chunk_id    = EXCLUDED.chunk_id,
    embedding   = EXCLUDED.embedding,
    payload     = EXCLUDED.payload,
    visibility  = EXCLUDED.visibility`, collection)

	for start := 0; start < len(records); start += s.config.UpsertBatchSize {
		end := start + s.config.UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		batch := &pgx.Batch{}
		for _, rec := range records[start:end] {
			payload, err := json.Marshal(rec.Payload)
			if err != nil {
				err = fmt.Errorf("marshal payload for record %s: %w", rec.ID, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			batch.Queue(sql,
				recordUUID(rec.ID), rec.TenantID, rec.ProjectID, rec.DocumentID, rec.ChunkID,
				vectorLiteral(rec.Vector), payload, string(rec.Visibility))
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			err = fmt.Errorf("upsert batch into %s: %w", collection, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Search runs scoped cosine-similarity search. Score is 1 - cosine
// distance so higher means closer, matching the other adapters.
func (s *PgVectorStore) Search(ctx context.Context, collection string, params SearchParams) ([]ScoredResult, error) {
	ctx, span := pgTracer.Start(ctx, "pgvector.search",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("tenant_id", params.TenantID),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	// Scope validation happens before any query leaves the process.
	if err := params.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := ValidateCollectionName(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sql, args, err := searchQuery(collection, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		err = pgSearchError(collection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var results []ScoredResult
	for rows.Next() {
		var (
			id, documentID, chunkID string
			payloadRaw              []byte
			score                   float64
		)
		if err := rows.Scan(&id, &documentID, &chunkID, &payloadRaw, &score); err != nil {
			err = fmt.Errorf("scan search result: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		var payload map[string]interface{}
		if len(payloadRaw) > 0 {
			if err := json.Unmarshal(payloadRaw, &payload); err != nil {
				err = fmt.Errorf("decode payload for %s: %w", id, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}
		results = append(results, ScoredResult{
			ID:         id,
			DocumentID: documentID,
			ChunkID:    chunkID,
			Content:    payloadString(payload, payloadKeyContent),
			Score:      float32(score),
			Payload:    payload,
		})
	}
	if err := rows.Err(); err != nil {
		err = pgSearchError(collection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// searchQuery builds the scoped search SQL and its arguments. Metadata
// filter values must be strings; silently skipping a non-string value would
// widen the result set, so it is rejected.
func searchQuery(collection string, params SearchParams) (string, []interface{}, error) {
	args := []interface{}{vectorLiteral(params.Vector), params.TenantID, params.ProjectID, string(VisibilityVisible)}
	where := []string{"tenant_id = $2", "project_id = $3", "visibility = $4"}

	if params.Filter != nil {
		if len(params.Filter.DocumentIDs) > 0 {
			args = append(args, params.Filter.DocumentIDs)
			where = append(where, fmt.Sprintf("document_id = ANY($%d)", len(args)))
		}
		for key, value := range params.Filter.Metadata {
			str, ok := value.(string)
			if !ok {
				return "", nil, fmt.Errorf("%w: metadata filter value for %q must be a string, got %T", ErrInvalidQuery, key, value)
			}
			args = append(args, key)
			keyArg := len(args)
			args = append(args, str)
			where = append(where, fmt.Sprintf("payload->>$%d = $%d", keyArg, len(args)))
		}
	}
	if params.ScoreThreshold > 0 {
		args = append(args, float64(1-params.ScoreThreshold))
		where = append(where, fmt.Sprintf("embedding <=> $1::vector <= $%d", len(args)))
	}

	args = append(args, params.TopK)
	sql := fmt.Sprintf(`
SELECT id, document_id, chunk_id, payload, 1 - (embedding <=> $1::vector) AS score
FROM %s
WHERE %s
ORDER BY embedding <=> $1::vector
LIMIT $%d`, collection, strings.Join(where, " AND "), len(args))

	return sql, args, nil
}

// pgSearchError maps Postgres undefined_table (SQLSTATE 42P01) onto
// ErrCollectionNotFound so pgvector honors the same missing-collection
// contract as the other adapters; anything else passes through as a
// transport error.
func pgSearchError(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return fmt.Errorf("search %s: %w", collection, err)
}

// Delete removes records by ID, scoped to the tenant.
func (s *PgVectorStore) Delete(ctx context.Context, collection, tenantID string, ids []string) error {
	ctx, span := pgTracer.Start(ctx, "pgvector.delete",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("id_count", len(ids)),
		))
	defer span.End()

	if tenantID == "" {
		err := fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := ValidateCollectionName(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "success")
		return nil
	}

	keys := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		keys[i] = recordUUID(id)
	}
	sql := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND id = ANY($2)`, collection)
	if _, err := s.pool.Exec(ctx, sql, tenantID, keys); err != nil {
		err = fmt.Errorf("delete from %s: %w", collection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteByFilter removes records matching the selector, tenant-scoped.
func (s *PgVectorStore) DeleteByFilter(ctx context.Context, collection, tenantID string, sel DeleteSelector) error {
	ctx, span := pgTracer.Start(ctx, "pgvector.delete_by_filter",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	if tenantID == "" {
		err := fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := ValidateCollectionName(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	args := []interface{}{tenantID}
	where := []string{"tenant_id = $1"}
	if sel.ProjectID != "" {
		args = append(args, sel.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if sel.DocumentID != "" {
		args = append(args, sel.DocumentID)
		where = append(where, fmt.Sprintf("document_id = $%d", len(args)))
	}

	sql := fmt.Sprintf(`DELETE FROM %s WHERE %s`, collection, strings.Join(where, " AND "))
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		err = fmt.Errorf("delete from %s: %w", collection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// SetVisibility flips visibility for one document's records, tenant-scoped.
func (s *PgVectorStore) SetVisibility(ctx context.Context, collection, tenantID, documentID string, visibility Visibility) error {
	ctx, span := pgTracer.Start(ctx, "pgvector.set_visibility",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.String("document_id", documentID),
			attribute.String("visibility", string(visibility)),
		))
	defer span.End()

	if tenantID == "" {
		err := fmt.Errorf("%w: tenant id is required", ErrIsolationViolation)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if documentID == "" {
		err := fmt.Errorf("%w: document id is required", ErrInvalidQuery)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if !visibility.Valid() {
		err := fmt.Errorf("%w: unknown visibility %q", ErrInvalidQuery, visibility)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := ValidateCollectionName(collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	sql := fmt.Sprintf(`UPDATE %s SET visibility = $1 WHERE tenant_id = $2 AND document_id = $3`, collection)
	if _, err := s.pool.Exec(ctx, sql, string(visibility), tenantID, documentID); err != nil {
		err = fmt.Errorf("set visibility on %s: %w", collection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Close releases the connection pool.
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

// Ensure PgVectorStore implements Store.
var _ Store = (*PgVectorStore)(nil)
