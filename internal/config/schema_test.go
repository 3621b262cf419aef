package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_AcceptsKnownKeys(t *testing.T) {
	doc := map[string]any{
		"max_concurrent": 4,
		"checker": map[string]any{
			"enabled":   true,
			"pool_size": 4,
		},
		"linter": map[string]any{
			"rules": map[string]any{"no-unused": "warning"},
		},
	}

	require.NoError(t, validateDocument(doc))
}

func TestValidateDocument_RejectsTypoedTopLevelKey(t *testing.T) {
	doc := map[string]any{
		"max_concurent": 4, // typo: missing "r"
	}

	err := validateDocument(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestValidateDocument_RejectsTypoedNestedKey(t *testing.T) {
	doc := map[string]any{
		"checker": map[string]any{
			"pool_sise": 4, // typo: "sise" instead of "size"
		},
	}

	err := validateDocument(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestValidateDocument_RejectsNonStringRuleSeverity(t *testing.T) {
	doc := map[string]any{
		"linter": map[string]any{
			"rules": map[string]any{"no-unused": 1},
		},
	}

	err := validateDocument(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}
