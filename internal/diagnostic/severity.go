package diagnostic

import "strings"

// checkerSeverityMap maps raw checker severity strings to the canonical set.
var checkerSeverityMap = map[string]Severity{
	"error":       SeverityError,
	"warning":     SeverityWarning,
	"warn":        SeverityWarning,
	"info":        SeverityInfo,
	"information": SeverityInfo,
	"hint":        SeverityHint,
	"suggestion":  SeverityHint,
}

// linterSeverityMap maps raw linter severity strings to the canonical set.
var linterSeverityMap = map[string]Severity{
	"error":   SeverityError,
	"deny":    SeverityError,
	"warning": SeverityWarning,
	"warn":    SeverityWarning,
	"info":    SeverityInfo,
	"advice":  SeverityInfo,
	"hint":    SeverityHint,
	"help":    SeverityHint,
}

// NormalizeCheckerSeverity maps a raw checker severity string to the
// canonical set, defaulting to SeverityInfo for anything unrecognized.
func NormalizeCheckerSeverity(raw string) Severity {
	if sev, ok := checkerSeverityMap[strings.ToLower(raw)]; ok {
		return sev
	}

	return SeverityInfo
}

// NormalizeLinterSeverity maps a raw linter severity string to the
// canonical set, defaulting to SeverityWarning for anything unrecognized
// (lint findings without a recognizable severity are still worth surfacing).
func NormalizeLinterSeverity(raw string) Severity {
	if sev, ok := linterSeverityMap[strings.ToLower(raw)]; ok {
		return sev
	}

	return SeverityWarning
}
