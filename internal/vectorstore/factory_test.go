package vectorstore

import (
	"context"
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
			name:    "missing backend",
			config:  Config{},
			wantErr: "backend is required",
		},
		{
			name:    "unknown backend",
			config:  Config{Backend: "pinecone"},
			wantErr: "unknown vector store backend",
		},
		{
			name:    "qdrant requires url",
			config:  Config{Backend: BackendQdrant},
			wantErr: "qdrant url is required",
		},
		{
			name:    "pgvector requires connection string",
			config:  Config{Backend: BackendPgVector},
			wantErr: "pgvector connection string is required",
		},
		{
			name:   "memory needs nothing",
			config: Config{Backend: BackendMemory},
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

func TestNewMemoryBackend(t *testing.T) {
	store, err := New(context.Background(), Config{Backend: BackendMemory})
	require.NoError(t, err)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}
