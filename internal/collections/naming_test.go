package collections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateName(t *testing.T) {
	name, err := GenerateName("Acme Corp", "docs-v2")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(name, "acme_corp_docs_v2_"))
	assert.Regexp(t, `^[a-z0-9_]{1,64}$`, name)

	again, err := GenerateName("Acme Corp", "docs-v2")
	require.NoError(t, err)
	assert.Equal(t, name, again, "naming must be deterministic")
}

func TestGenerateNameDistinguishesScopes(t *testing.T) {
	a, err := GenerateName("a-b", "c")
	require.NoError(t, err)
	b, err := GenerateName("a", "b-c")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "hash suffix must separate scopes that sanitize alike")
}

func TestGenerateNameValidation(t *testing.T) {
	_, err := GenerateName("", "p")
	assert.ErrorIs(t, err, ErrInvalidTenantID)

	_, err = GenerateName("t", "")
	assert.ErrorIs(t, err, ErrInvalidProjectID)
}

func TestGenerateNameLongIdentifiers(t *testing.T) {
	name, err := GenerateName(strings.Repeat("tenant", 20), strings.Repeat("project", 20))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(name), 64)
}
