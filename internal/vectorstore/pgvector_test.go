package vectorstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgSearchError(t *testing.T) {
	t.Run("undefined table maps to collection not found", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "42P01", Message: `relation "acme_docs_ab12cd34" does not exist`}
		err := pgSearchError("acme_docs_ab12cd34", pgErr)
		assert.ErrorIs(t, err, ErrCollectionNotFound)
		assert.Contains(t, err.Error(), "acme_docs_ab12cd34")
	})

	t.Run("wrapped undefined table still maps", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "42P01"}
		err := pgSearchError("docs", fmt.Errorf("exec: %w", pgErr))
		assert.ErrorIs(t, err, ErrCollectionNotFound)
	})

	t.Run("other SQL states pass through as transport errors", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "53300", Message: "too many connections"}
		err := pgSearchError("docs", pgErr)
		assert.NotErrorIs(t, err, ErrCollectionNotFound)
		assert.ErrorAs(t, err, &pgErr)
	})

	t.Run("plain errors pass through", func(t *testing.T) {
		err := pgSearchError("docs", errors.New("broken pipe"))
		assert.NotErrorIs(t, err, ErrCollectionNotFound)
	})
}

func TestSearchQuery(t *testing.T) {
	params := SearchParams{
		TenantID:  "tenant-a",
		ProjectID: "proj-1",
		Vector:    []float32{1, 0},
		TopK:      5,
	}

	t.Run("scope clauses always present", func(t *testing.T) {
		sql, args, err := searchQuery("docs", params)
		require.NoError(t, err)
		assert.Contains(t, sql, "tenant_id = $2")
		assert.Contains(t, sql, "project_id = $3")
		assert.Contains(t, sql, "visibility = $4")
		assert.Len(t, args, 5) // vector, tenant, project, visibility, limit
	})

	t.Run("documents, metadata, and threshold", func(t *testing.T) {
		params := params
		params.ScoreThreshold = 0.5
		params.Filter = &QueryFilter{
			DocumentIDs: []string{"doc-1"},
			Metadata:    map[string]interface{}{"lang": "en"},
		}
		sql, args, err := searchQuery("docs", params)
		require.NoError(t, err)
		assert.Contains(t, sql, "document_id = ANY($5)")
		assert.Contains(t, sql, "payload->>$6 = $7")
		assert.Contains(t, sql, "embedding <=> $1::vector <= $8")
		assert.Contains(t, sql, "LIMIT $9")
		assert.Len(t, args, 9)
	})

	t.Run("non-string metadata value rejected", func(t *testing.T) {
		params := params
		params.Filter = &QueryFilter{Metadata: map[string]interface{}{"page": 3}}
		_, _, err := searchQuery("docs", params)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidQuery)
		assert.Contains(t, err.Error(), `"page"`)
	})
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[1,0.5,-2]", vectorLiteral([]float32{1, 0.5, -2}))
}

func TestRecordUUID(t *testing.T) {
	t.Run("valid uuid parses through", func(t *testing.T) {
		id := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
		assert.Equal(t, id, recordUUID(id).String())
	})

	t.Run("non-uuid hashes deterministically", func(t *testing.T) {
		assert.Equal(t, recordUUID("doc-1:0"), recordUUID("doc-1:0"))
		assert.NotEqual(t, recordUUID("doc-1:0"), recordUUID("doc-1:1"))
	})
}
