package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowlayer/langbridge/internal/observability"
)

const (
	serverName    = "langbridge"
	serverVersion = "1.0.0"

	toolCount = 4
)

// Backend is the set of coordinator operations the MCP tool surface calls
// into. It is satisfied by internal/inspector's Inspector, which reads from
// internal/resultcache and internal/config, so this package stays decoupled
// from their internals.
type Backend interface {
	InspectorSnapshot(ctx context.Context) (any, error)
	CacheStats(ctx context.Context, cache string) (any, error)
	ClearCache(ctx context.Context, cache string) error
	ReloadConfig(ctx context.Context, configPath string) (any, error)
}

// ServerDeps holds injectable dependencies for the MCP server.
type ServerDeps struct {
	Backend Backend

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with coordinator tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	backend Backend
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates a new MCP server with all coordinator tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	srv := &Server{
		inner:   inner,
		tools:   make([]string, 0, toolCount),
		backend: deps.Backend,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all coordinator MCP tools to the server.
func (s *Server) registerTools() {
	s.registerInspectorDataTool()
	s.registerCacheStatsTool()
	s.registerClearCacheTool()
	s.registerReloadConfigTool()
}

func (s *Server) registerInspectorDataTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameInspectorData,
		Description: inspectorDataToolDescription,
	}, withMetrics(s.metrics, ToolNameInspectorData, withTracing(s.tracer, ToolNameInspectorData, s.handleInspectorData)))

	s.trackTool(ToolNameInspectorData)
}

func (s *Server) registerCacheStatsTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameCacheStats,
		Description: cacheStatsToolDescription,
	}, withMetrics(s.metrics, ToolNameCacheStats, withTracing(s.tracer, ToolNameCacheStats, s.handleCacheStats)))

	s.trackTool(ToolNameCacheStats)
}

func (s *Server) registerClearCacheTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameClearCache,
		Description: clearCacheToolDescription,
	}, withMetrics(s.metrics, ToolNameClearCache, withTracing(s.tracer, ToolNameClearCache, s.handleClearCache)))

	s.trackTool(ToolNameClearCache)
}

func (s *Server) registerReloadConfigTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameReloadConfig,
		Description: reloadConfigToolDescription,
	}, withMetrics(s.metrics, ToolNameReloadConfig, withTracing(s.tracer, ToolNameReloadConfig, s.handleReloadConfig)))

	s.trackTool(ToolNameReloadConfig)
}

func (s *Server) handleInspectorData(
	ctx context.Context, _ *mcpsdk.CallToolRequest, _ InspectorDataInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	snapshot, err := s.backend.InspectorSnapshot(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("inspector snapshot: %w", err))
	}

	return jsonResult(snapshot)
}

func (s *Server) handleCacheStats(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CacheStatsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	stats, err := s.backend.CacheStats(ctx, input.Cache)
	if err != nil {
		return errorResult(fmt.Errorf("cache stats: %w", err))
	}

	return jsonResult(stats)
}

func (s *Server) handleClearCache(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ClearCacheInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := s.backend.ClearCache(ctx, input.Cache); err != nil {
		return errorResult(fmt.Errorf("clear cache: %w", err))
	}

	return jsonResult(map[string]string{"cleared": input.Cache})
}

func (s *Server) handleReloadConfig(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ReloadConfigInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	cfg, err := s.backend.ReloadConfig(ctx, input.ConfigPath)
	if err != nil {
		return errorResult(fmt.Errorf("reload config: %w", err))
	}

	return jsonResult(cfg)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}
