package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() Record {
	return Record{
		ID:         "9b2a9d2e-0000-4000-8000-000000000001",
		TenantID:   "tenant-a",
		ProjectID:  "project-x",
		DocumentID: "doc-1",
		ChunkID:    "doc-1:0",
		Vector:     []float32{0.1, 0.2, 0.3},
		Visibility: VisibilityHidden,
	}
}

func TestVisibilityValid(t *testing.T) {
	assert.True(t, VisibilityHidden.Valid())
	assert.True(t, VisibilityVisible.Valid())
	assert.True(t, VisibilityDeleted.Valid())
	assert.False(t, Visibility("archived").Valid())
	assert.False(t, Visibility("").Valid())
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "documents"},
		{name: "with underscore and digits", input: "tenant_42_docs"},
		{name: "empty", input: "", wantErr: true},
		{name: "uppercase", input: "Documents", wantErr: true},
		{name: "hyphen", input: "my-docs", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 65), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr error
	}{
		{name: "valid", mutate: func(*Record) {}},
		{name: "missing id", mutate: func(r *Record) { r.ID = "" }, wantErr: ErrInvalidRecord},
		{name: "missing tenant", mutate: func(r *Record) { r.TenantID = "" }, wantErr: ErrInvalidRecord},
		{name: "missing project", mutate: func(r *Record) { r.ProjectID = "" }, wantErr: ErrInvalidRecord},
		{name: "missing document", mutate: func(r *Record) { r.DocumentID = "" }, wantErr: ErrInvalidRecord},
		{name: "empty vector", mutate: func(r *Record) { r.Vector = nil }, wantErr: ErrInvalidRecord},
		{name: "bad visibility", mutate: func(r *Record) { r.Visibility = "gone" }, wantErr: ErrInvalidRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchParamsValidate(t *testing.T) {
	valid := SearchParams{
		TenantID:  "tenant-a",
		ProjectID: "project-x",
		Vector:    []float32{1, 0},
		TopK:      5,
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("missing tenant fails closed", func(t *testing.T) {
		p := valid
		p.TenantID = ""
		assert.ErrorIs(t, p.Validate(), ErrIsolationViolation)
	})

	t.Run("missing project fails closed", func(t *testing.T) {
		p := valid
		p.ProjectID = ""
		assert.ErrorIs(t, p.Validate(), ErrIsolationViolation)
	})

	t.Run("empty vector", func(t *testing.T) {
		p := valid
		p.Vector = nil
		assert.ErrorIs(t, p.Validate(), ErrInvalidQuery)
	})

	t.Run("non-positive top k", func(t *testing.T) {
		p := valid
		p.TopK = 0
		assert.ErrorIs(t, p.Validate(), ErrInvalidQuery)
	})
}
