package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing provider",
			config:  Config{},
			wantErr: "embedding provider is required",
		},
		{
			name:    "unknown provider",
			config:  Config{Provider: "openai"},
			wantErr: "unknown embedding provider",
		},
		{
			name:    "cohere block missing",
			config:  Config{Provider: ProviderCohere},
			wantErr: "cohere config is required",
		},
		{
			name:    "bge-m3 block missing",
			config:  Config{Provider: ProviderBGEM3},
			wantErr: "bge-m3 config is required",
		},
		{
			name:   "cohere valid",
			config: Config{Provider: ProviderCohere, Cohere: CohereConfig{APIKey: "k"}},
		},
		{
			name:   "bge-m3 valid",
			config: Config{Provider: ProviderBGEM3, BGEM3: BGEM3Config{BaseURL: "http://localhost:8080"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSelectsProvider(t *testing.T) {
	provider, err := New(Config{Provider: ProviderBGEM3, BGEM3: BGEM3Config{BaseURL: "http://localhost:8080"}}, nil)
	require.NoError(t, err)
	_, ok := provider.(*BGEM3Provider)
	assert.True(t, ok)
}
