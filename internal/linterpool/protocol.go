package linterpool

import "encoding/json"

// rawFix mirrors a linter's fix payload: a byte-span edit plus a message,
// preserved opaquely under Diagnostic.Attachment.
type rawFix struct {
	StartByte int    `json:"startByte"`
	EndByte   int    `json:"endByte"`
	Replace   string `json:"replace"`
	Message   string `json:"message,omitempty"`
}

// rawDiagnostic is the linter's JSON wire shape, prior to normalization.
type rawDiagnostic struct {
	Line      int     `json:"line"`
	Column    int     `json:"column"`
	EndLine   int     `json:"endLine,omitempty"`
	EndColumn int     `json:"endColumn,omitempty"`
	Message   string  `json:"message"`
	Severity  string  `json:"severity"`
	RuleCode  string  `json:"ruleCode,omitempty"`
	Help      string  `json:"help,omitempty"`
	Fix       *rawFix `json:"fix,omitempty"`
}

// parseJSON decodes stdout as either a JSON array of raw diagnostics or a
// single raw diagnostic object.
func parseJSON(data []byte) ([]rawDiagnostic, bool) {
	trimmed := trimLeadingSpace(data)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '[':
		var diags []rawDiagnostic
		if err := json.Unmarshal(trimmed, &diags); err != nil {
			return nil, false
		}

		return diags, true
	case '{':
		var one rawDiagnostic
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, false
		}

		return []rawDiagnostic{one}, true
	default:
		return nil, false
	}
}

func trimLeadingSpace(data []byte) []byte {
	i := 0
	for i < len(data) && (data[i] == ' ' || data[i] == '\t' || data[i] == '\n' || data[i] == '\r') {
		i++
	}

	return data[i:]
}
