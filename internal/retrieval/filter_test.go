package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilterAccepts(t *testing.T) {
	t.Run("nil filter", func(t *testing.T) {
		filter, err := ValidateFilter(nil)
		require.NoError(t, err)
		assert.Nil(t, filter)
	})

	t.Run("empty filter", func(t *testing.T) {
		filter, err := ValidateFilter(map[string]interface{}{})
		require.NoError(t, err)
		assert.Nil(t, filter)
	})

	t.Run("document ids", func(t *testing.T) {
		filter, err := ValidateFilter(map[string]interface{}{
			"documentIds": []interface{}{"a", "b"},
		})
		require.NoError(t, err)
		require.NotNil(t, filter)
		assert.Equal(t, []string{"a", "b"}, filter.DocumentIDs)
	})

	t.Run("document ids as string slice", func(t *testing.T) {
		filter, err := ValidateFilter(map[string]interface{}{
			"documentIds": []string{"a"},
		})
		require.NoError(t, err)
		require.NotNil(t, filter)
		assert.Equal(t, []string{"a"}, filter.DocumentIDs)
	})

	t.Run("metadata", func(t *testing.T) {
		filter, err := ValidateFilter(map[string]interface{}{
			"metadata": map[string]interface{}{"k": "v"},
		})
		require.NoError(t, err)
		require.NotNil(t, filter)
		assert.Equal(t, "v", filter.Metadata["k"])
	})
}

func TestValidateFilterRejects(t *testing.T) {
	tests := []struct {
		name    string
		filter  map[string]interface{}
		wantMsg string
	}{
		{
			name: "unknown key named in error",
			filter: map[string]interface{}{
				"documentIds":  []interface{}{"a"},
				"unknownField": "x",
			},
			wantMsg: "unknownField",
		},
		{
			name:    "metadata array",
			filter:  map[string]interface{}{"metadata": []interface{}{1, 2, 3}},
			wantMsg: "must be an object",
		},
		{
			name:    "metadata null",
			filter:  map[string]interface{}{"metadata": nil},
			wantMsg: "must not be null",
		},
		{
			name:    "document ids not an array",
			filter:  map[string]interface{}{"documentIds": "doc-1"},
			wantMsg: "array of strings",
		},
		{
			name:    "metadata value not a string",
			filter:  map[string]interface{}{"metadata": map[string]interface{}{"page": 3}},
			wantMsg: `key "page"`,
		},
		{
			name:    "document id element not a string",
			filter:  map[string]interface{}{"documentIds": []interface{}{"a", 7}},
			wantMsg: "element 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateFilter(tt.filter)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFilter)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
