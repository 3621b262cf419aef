package checkerpool

import "encoding/json"

// requestType and responseType values recognized by the wire protocol.
const (
	requestTypeAnalyze     = "analyze"
	requestTypeTypeInfo    = "typeInfo"
	requestTypeCompletions = "completions"
	requestTypeHealth      = "health"
	requestTypeShutdown    = "shutdown"

	responseTypeResult = "result"
	responseTypeError  = "error"
)

// wireRequest is one line of the newline-delimited JSON request protocol.
type wireRequest struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	URI     string          `json:"uri,omitempty"`
	Content string          `json:"content,omitempty"`
	Line    int             `json:"line,omitempty"`
	Column  int             `json:"column,omitempty"`
	Extra   json.RawMessage `json:"extra,omitempty"`
}

// wireResponse is one line of the newline-delimited JSON response protocol.
type wireResponse struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// rawDiagnostic mirrors the checker's wire-format diagnostic, prior to
// normalization into diagnostic.Diagnostic.
type rawDiagnostic struct {
	Line          int     `json:"line"`
	Column        int     `json:"column"`
	EndLine       int     `json:"endLine,omitempty"`
	EndColumn     int     `json:"endColumn,omitempty"`
	Message       string  `json:"message"`
	Severity      string  `json:"severity"`
	RuleCode      string  `json:"ruleCode,omitempty"`
	ComputeTimeMs float64 `json:"computeTimeMs,omitempty"`
}

type analyzeResult struct {
	Diagnostics []rawDiagnostic `json:"diagnostics"`
	Imports     []string        `json:"imports,omitempty"`
}
