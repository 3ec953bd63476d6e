package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsCollectionMissing(t *testing.T) {
	assert.True(t, isCollectionMissing(status.Error(grpccodes.NotFound, `Collection "acme_docs_ab12cd34" doesn't exist!`)))
	assert.False(t, isCollectionMissing(status.Error(grpccodes.Unavailable, "connection refused")))
	assert.False(t, isCollectionMissing(errors.New("dial tcp: connection refused")))
}

func TestScopeFilter(t *testing.T) {
	params := SearchParams{
		TenantID:  "tenant-a",
		ProjectID: "proj-1",
		Vector:    []float32{1, 0},
		TopK:      5,
	}

	t.Run("scope conditions always present", func(t *testing.T) {
		filter, err := scopeFilter(params)
		require.NoError(t, err)
		assert.Len(t, filter.Must, 3)
	})

	t.Run("document and metadata conditions", func(t *testing.T) {
		params := params
		params.Filter = &QueryFilter{
			DocumentIDs: []string{"doc-1", "doc-2"},
			Metadata:    map[string]interface{}{"lang": "en"},
		}
		filter, err := scopeFilter(params)
		require.NoError(t, err)
		assert.Len(t, filter.Must, 5)
	})

	t.Run("non-string metadata value rejected", func(t *testing.T) {
		params := params
		params.Filter = &QueryFilter{Metadata: map[string]interface{}{"page": 3}}
		_, err := scopeFilter(params)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidQuery)
		assert.Contains(t, err.Error(), `"page"`)
	})
}

func TestSplitQdrantURL(t *testing.T) {
	tests := []struct {
		url      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"localhost:6334", "localhost", 6334, false},
		{"qdrant.internal", "qdrant.internal", 6334, false},
		{"10.0.0.5:7000", "10.0.0.5", 7000, false},
		{"localhost:notaport", "", 0, true},
	}
	for _, tt := range tests {
		host, port, err := splitQdrantURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, "url %q", tt.url)
			continue
		}
		require.NoError(t, err, "url %q", tt.url)
		assert.Equal(t, tt.wantHost, host)
		assert.Equal(t, tt.wantPort, port)
	}
}
