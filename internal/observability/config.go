// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for every process mode the coordinator runs as.
package observability

import "log/slog"

// AppMode identifies which part of the coordinator a process is running as.
type AppMode string

const (
	// ModeBridge is the analysis bridge / dispatcher process.
	ModeBridge AppMode = "bridge"
	// ModeCheckerPool is a standalone checker-pool manager process.
	ModeCheckerPool AppMode = "checkerpool"
	// ModeLinterPool is a standalone linter-pool manager process.
	ModeLinterPool AppMode = "linterpool"
	// ModeInspector is the one-shot inspector CLI / MCP surface.
	ModeInspector AppMode = "inspector"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "langbridge"

	// defaultShutdownTimeoutSec is the default shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production", "staging", "dev").
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables export; providers become no-op.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// DebugTrace forces 100% trace sampling when true.
	DebugTrace bool

	// SampleRatio is the trace sampling ratio (0.0 to 1.0) when DebugTrace is false.
	// Zero uses the OTel SDK default (parent-based with always-on root).
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// TraceVerbose disables tracer filtering (suppressed tracer and span
	// names), useful in dev mode. Span attribute filtering applies regardless.
	TraceVerbose bool

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int

	// DiagnosticsAddr is an address for the /healthz, /readyz, and /metrics
	// HTTP server. Init does not read it and starts no server;
	// NewDiagnosticsServer takes its address as an argument.
	DiagnosticsAddr string
}

// DefaultConfig returns a Config with sensible defaults for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeBridge,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
