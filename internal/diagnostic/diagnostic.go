// Package diagnostic defines the shared data model for analyzer findings
// and analysis results: the Diagnostic record, its severity and source
// enums, and the AnalysisResult returned by the bridge.
package diagnostic

import (
	"errors"
	"fmt"
	"sort"

	"github.com/flowlayer/langbridge/internal/contenthash"
)

// Severity is the canonical severity of a Diagnostic, after normalizing
// whatever raw string the checker or linter reported.
type Severity string

// Canonical severities, ordered from most to least urgent.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// Source identifies which analyzer produced a Diagnostic.
type Source string

// Known sources. Turbo is reserved for diagnostics synthesized by the
// bridge itself (none are emitted by the components in this package, but
// downstream callers may attach them).
const (
	SourceChecker Source = "checker"
	SourceLinter  Source = "linter"
	SourceTurbo   Source = "turbo"
)

// Sentinel validation errors for Diagnostic invariants.
var (
	ErrInvalidLine   = errors.New("diagnostic line must be >= 1")
	ErrInvalidColumn = errors.New("diagnostic column must be >= 1")
	ErrInvalidEndPos = errors.New("diagnostic end position must be >= start position")
)

// Diagnostic is an immutable finding attached to a source location.
type Diagnostic struct {
	File          string   `json:"file"`
	Line          int      `json:"line"`
	Column        int      `json:"column"`
	EndLine       int      `json:"endLine,omitempty"`
	EndColumn     int      `json:"endColumn,omitempty"`
	Message       string   `json:"message"`
	Severity      Severity `json:"severity"`
	Source        Source   `json:"source"`
	RuleCode      string   `json:"ruleCode,omitempty"`
	ComputeTimeMs float64  `json:"computeTimeMs"`
	Attachment    any      `json:"attachment,omitempty"` // opaque, e.g. a fix payload
}

// HasEnd reports whether an end position was supplied.
func (d Diagnostic) HasEnd() bool {
	return d.EndLine != 0 || d.EndColumn != 0
}

// Validate checks the Diagnostic invariants from the data model: line and
// column are 1-based, and any end position is not before the start.
func (d Diagnostic) Validate() error {
	if d.Line < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLine, d.Line)
	}

	if d.Column < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidColumn, d.Column)
	}

	if d.HasEnd() {
		if d.EndLine < d.Line || (d.EndLine == d.Line && d.EndColumn < d.Column) {
			return fmt.Errorf("%w: start=(%d,%d) end=(%d,%d)",
				ErrInvalidEndPos, d.Line, d.Column, d.EndLine, d.EndColumn)
		}
	}

	return nil
}

// dedupKey is the identity used to merge checker and linter diagnostics:
// (file, line, column, message).
type dedupKey struct {
	file    string
	line    int
	column  int
	message string
}

// SortStable orders diagnostics by the stable key (file, line, column,
// source), matching the ordering invariant used to compare cache-hit and
// fresh results.
func SortStable(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.File != b.File {
			return a.File < b.File
		}

		if a.Line != b.Line {
			return a.Line < b.Line
		}

		if a.Column != b.Column {
			return a.Column < b.Column
		}

		return a.Source < b.Source
	})
}

// Merge combines checker and linter diagnostics with settle-all semantics:
// neither input being present is an error at this layer (the caller
// decides whether an empty list means "no findings" or "analyzer failed").
// Diagnostics are deduplicated by (file, line, column, message); on
// conflict the checker's record wins.
func Merge(checkerDiags, linterDiags []Diagnostic) []Diagnostic {
	byKey := make(map[dedupKey]Diagnostic, len(checkerDiags)+len(linterDiags))
	order := make([]dedupKey, 0, len(checkerDiags)+len(linterDiags))

	add := func(d Diagnostic, winIfConflict bool) {
		key := dedupKey{file: d.File, line: d.Line, column: d.Column, message: d.Message}

		existing, ok := byKey[key]
		if !ok {
			byKey[key] = d
			order = append(order, key)

			return
		}

		if winIfConflict && existing.Source != SourceChecker {
			byKey[key] = d
		}
	}

	for _, d := range linterDiags {
		add(d, false)
	}

	for _, d := range checkerDiags {
		add(d, true)
	}

	merged := make([]Diagnostic, 0, len(order))
	for _, key := range order {
		merged = append(merged, byKey[key])
	}

	SortStable(merged)

	return merged
}

// AnalysisResult is the return value of Bridge.analyze.
type AnalysisResult struct {
	URI            string           `json:"uri"`
	ContentHash    contenthash.Hash `json:"contentHash"`
	Diagnostics    []Diagnostic     `json:"diagnostics"`
	AnalysisTimeMs float64          `json:"analysisTimeMs"`
	FromCache      bool             `json:"fromCache"`
}
