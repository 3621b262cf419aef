// Package lspadapter is the thin LSP boundary described by spec.md §1 as
// "referenced only by contract": textDocument/didOpen|didChange|didSave|didClose
// handlers that drive the Analysis Bridge and publish its diagnostics back
// to the client.
package lspadapter

import (
	"context"
	"log"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/flowlayer/langbridge/internal/bridge"
	"github.com/flowlayer/langbridge/internal/diagnostic"
)

// Analyzer is the subset of *bridge.Bridge this adapter depends on.
type Analyzer interface {
	Analyze(ctx context.Context, uri string, content []byte, force bool, priority bridge.Priority) (diagnostic.AnalysisResult, error)
	Invalidate(uri string)
}

// DocumentStore is a thread-safe store for open document contents keyed by
// URI.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]string
}

// NewDocumentStore creates a new empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{documents: make(map[string]string)}
}

// Set stores document content for the given URI.
func (ds *DocumentStore) Set(uri, content string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = content
}

// Get retrieves document content by URI.
func (ds *DocumentStore) Get(uri string) (string, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	content, ok := ds.documents[uri]

	return content, ok
}

// Delete removes document content by URI.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// Server adapts the Analysis Bridge to the LSP document lifecycle.
type Server struct {
	store    *DocumentStore
	analyzer Analyzer
	handler  protocol.Handler
}

// NewServer wires LSP document lifecycle handlers to the given Analyzer.
func NewServer(analyzer Analyzer) *Server {
	srv := &Server{store: NewDocumentStore(), analyzer: analyzer}

	srv.handler = protocol.Handler{
		Initialize:            srv.initialize,
		Initialized:           srv.initialized,
		Shutdown:              srv.shutdown,
		SetTrace:              srv.setTrace,
		TextDocumentDidOpen:   srv.didOpen,
		TextDocumentDidChange: srv.didChange,
		TextDocumentDidSave:   srv.didSave,
		TextDocumentDidClose:  srv.didClose,
	}

	return srv
}

// Run starts the LSP server on stdio. It blocks until the connection closes.
func (srv *Server) Run() {
	lspServer := server.NewServer(&srv.handler, "langbridge", false)

	if err := lspServer.RunStdio(); err != nil {
		log.Printf("lspadapter: server error: %v", err)
	}
}

func (srv *Server) initialize(_ *glsp.Context, _ *protocol.InitializeParams) (any, error) {
	capabilities := srv.handler.CreateServerCapabilities()
	version := "1.0.0"

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    "langbridge",
			Version: &version,
		},
	}, nil
}

func (srv *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (srv *Server) shutdown(_ *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)

	return nil
}

func (srv *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)

	return nil
}

func (srv *Server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	srv.store.Set(uri, text)
	srv.analyzeAndPublish(ctx, uri, text, bridge.PriorityActive)

	return nil
}

func (srv *Server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	if len(params.ContentChanges) == 0 {
		return nil
	}

	change, ok := params.ContentChanges[0].(map[string]any)
	if !ok {
		return nil
	}

	text, ok := change["text"].(string)
	if !ok {
		return nil
	}

	srv.store.Set(uri, text)
	srv.analyzeAndPublish(ctx, uri, text, bridge.PriorityActive)

	return nil
}

func (srv *Server) didSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI

	if text, ok := srv.store.Get(uri); ok {
		srv.analyzeAndPublish(ctx, uri, text, bridge.PriorityOpen)
	}

	return nil
}

func (srv *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	srv.store.Delete(uri)
	srv.analyzer.Invalidate(uri)

	return nil
}

// analyzeAndPublish runs the bridge and notifies the client of the result,
// converting a dispatch error into an empty diagnostics publish rather than
// surfacing it as a protocol-level failure.
func (srv *Server) analyzeAndPublish(ctx *glsp.Context, uri, text string, priority bridge.Priority) {
	result, err := srv.analyzer.Analyze(context.Background(), uri, []byte(text), false, priority)
	if err != nil {
		ctx.Notify("textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: []protocol.Diagnostic{},
		})

		return
	}

	ctx.Notify("textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toLSPDiagnostics(result.Diagnostics),
	})
}

func toLSPDiagnostics(diags []diagnostic.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))

	for _, d := range diags {
		endLine, endCol := d.Line, d.Column+1
		if d.HasEnd() {
			endLine, endCol = d.EndLine, d.EndColumn
		}

		severity := severityFor(d.Severity)
		source := string(d.Source)

		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(d.Line - 1), Character: uint32(d.Column - 1)},
				End:   protocol.Position{Line: uint32(endLine - 1), Character: uint32(endCol - 1)},
			},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}

	return out
}

func severityFor(s diagnostic.Severity) protocol.DiagnosticSeverity {
	switch s {
	case diagnostic.SeverityError:
		return protocol.DiagnosticSeverityError
	case diagnostic.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case diagnostic.SeverityInfo:
		return protocol.DiagnosticSeverityInformation
	case diagnostic.SeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityInformation
	}
}
