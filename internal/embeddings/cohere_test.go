package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCohereTestServer serves /v2/embed, encoding each text's global arrival
// order into its vector so tests can assert input-order concatenation.
func newCohereTestServer(t *testing.T, batchSizes *[]int) *httptest.Server {
	t.Helper()
	var served int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/embed", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req cohereRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if batchSizes != nil {
			*batchSizes = append(*batchSizes, len(req.Texts))
		}

		var resp cohereResponse
		for range req.Texts {
			resp.Embeddings.Float = append(resp.Embeddings.Float, []float32{float32(served), 1})
			served++
		}
		resp.Meta.BilledUnits.InputTokens = len(req.Texts) * 3
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestCohereProvider(t *testing.T, baseURL string) *CohereProvider {
	t.Helper()
	provider, err := NewCohereProvider(CohereConfig{
		APIKey:  "test-key",
		Model:   "embed-english-v3.0",
		BaseURL: baseURL,
	}, nil)
	require.NoError(t, err)
	return provider
}

func TestCohereProviderEmbed(t *testing.T) {
	server := newCohereTestServer(t, nil)
	defer server.Close()

	provider := newTestCohereProvider(t, server.URL)
	result, err := provider.Embed(context.Background(), "hello", InputTypeQuery)
	require.NoError(t, err)

	require.Len(t, result.Embeddings, 1)
	assert.Equal(t, "embed-english-v3.0", result.Model)
	assert.Equal(t, 1024, result.Dimensions)
	assert.Equal(t, 3, result.TokensUsed)
}

func TestCohereProviderBatchOrder(t *testing.T) {
	var batchSizes []int
	server := newCohereTestServer(t, &batchSizes)
	defer server.Close()

	provider := newTestCohereProvider(t, server.URL)

	texts := make([]string, 200)
	for i := range texts {
		texts[i] = "text"
	}
	result, err := provider.BatchEmbed(context.Background(), texts, InputTypeDocument)
	require.NoError(t, err)

	assert.Equal(t, []int{96, 96, 8}, batchSizes)
	require.Len(t, result.Embeddings, 200)
	for i, vec := range result.Embeddings {
		assert.Equal(t, float32(i), vec[0], "embeddings must stay in input order across sub-batches")
	}
	assert.Equal(t, 200*3, result.TokensUsed)
}

func TestCohereProviderEmptyInput(t *testing.T) {
	provider := newTestCohereProvider(t, "http://unused")
	_, err := provider.BatchEmbed(context.Background(), nil, InputTypeDocument)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCohereProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api token", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := newTestCohereProvider(t, server.URL)
	_, err := provider.Embed(context.Background(), "hello", InputTypeQuery)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewCohereProviderValidation(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		_, err := NewCohereProvider(CohereConfig{}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "api key is required")
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := NewCohereProvider(CohereConfig{APIKey: "k", Model: "embed-v99"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("light model dimension", func(t *testing.T) {
		provider, err := NewCohereProvider(CohereConfig{APIKey: "k", Model: "embed-english-light-v3.0"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 384, provider.Dimensions())
	})
}
