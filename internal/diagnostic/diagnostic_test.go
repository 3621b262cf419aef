package diagnostic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlayer/langbridge/internal/diagnostic"
)

func TestDiagnostic_ValidateInvariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       diagnostic.Diagnostic
		wantErr bool
	}{
		{"valid, no end", diagnostic.Diagnostic{Line: 1, Column: 1}, false},
		{"valid with end", diagnostic.Diagnostic{Line: 2, Column: 3, EndLine: 2, EndColumn: 5}, false},
		{"invalid line", diagnostic.Diagnostic{Line: 0, Column: 1}, true},
		{"invalid column", diagnostic.Diagnostic{Line: 1, Column: 0}, true},
		{"end before start", diagnostic.Diagnostic{Line: 5, Column: 5, EndLine: 5, EndColumn: 2}, true},
		{"end line before start line", diagnostic.Diagnostic{Line: 5, Column: 1, EndLine: 4, EndColumn: 1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.d.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMerge_CheckerWinsOnConflict(t *testing.T) {
	t.Parallel()

	checkerDiags := []diagnostic.Diagnostic{
		{File: "a.go", Line: 1, Column: 1, Message: "dup", Source: diagnostic.SourceChecker, Severity: diagnostic.SeverityError},
	}
	linterDiags := []diagnostic.Diagnostic{
		{File: "a.go", Line: 1, Column: 1, Message: "dup", Source: diagnostic.SourceLinter, Severity: diagnostic.SeverityWarning},
	}

	merged := diagnostic.Merge(checkerDiags, linterDiags)

	require.Len(t, merged, 1)
	assert.Equal(t, diagnostic.SourceChecker, merged[0].Source)
}

func TestMerge_DistinctFindingsAllSurvive(t *testing.T) {
	t.Parallel()

	checkerDiags := []diagnostic.Diagnostic{
		{File: "a.go", Line: 1, Column: 1, Message: "c1", Source: diagnostic.SourceChecker},
	}
	linterDiags := []diagnostic.Diagnostic{
		{File: "a.go", Line: 2, Column: 1, Message: "l1", Source: diagnostic.SourceLinter},
	}

	merged := diagnostic.Merge(checkerDiags, linterDiags)
	require.Len(t, merged, 2)
}

func TestMerge_StableSortOrder(t *testing.T) {
	t.Parallel()

	diags := diagnostic.Merge(nil, []diagnostic.Diagnostic{
		{File: "b.go", Line: 1, Column: 1, Message: "x", Source: diagnostic.SourceLinter},
		{File: "a.go", Line: 5, Column: 1, Message: "y", Source: diagnostic.SourceLinter},
		{File: "a.go", Line: 1, Column: 9, Message: "z", Source: diagnostic.SourceLinter},
	})

	require.Len(t, diags, 3)
	assert.Equal(t, "a.go", diags[0].File)
	assert.Equal(t, 1, diags[0].Line)
	assert.Equal(t, "a.go", diags[1].File)
	assert.Equal(t, 5, diags[1].Line)
	assert.Equal(t, "b.go", diags[2].File)
}

func TestNormalizeCheckerSeverity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, diagnostic.SeverityError, diagnostic.NormalizeCheckerSeverity("error"))
	assert.Equal(t, diagnostic.SeverityHint, diagnostic.NormalizeCheckerSeverity("suggestion"))
	assert.Equal(t, diagnostic.SeverityInfo, diagnostic.NormalizeCheckerSeverity("unknown"))
}

func TestNormalizeLinterSeverity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, diagnostic.SeverityError, diagnostic.NormalizeLinterSeverity("deny"))
	assert.Equal(t, diagnostic.SeverityHint, diagnostic.NormalizeLinterSeverity("help"))
	assert.Equal(t, diagnostic.SeverityWarning, diagnostic.NormalizeLinterSeverity("unrecognized"))
}
