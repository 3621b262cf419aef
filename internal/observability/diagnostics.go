package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/metric"
)

// DiagnosticsServer exposes /healthz, /readyz, and /metrics for a
// coordinator process that is otherwise reachable only over stdio (LSP) or
// MCP transports.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewDiagnosticsServer builds and starts a diagnostics HTTP server at addr.
// When meter is non-nil, scheduler metrics are registered and /metrics
// serves a Prometheus-format snapshot of them.
func NewDiagnosticsServer(ctx context.Context, addr string, meter metric.Meter, checks ...ReadyCheck) (*DiagnosticsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(checks...))

	metricsHandler, err := PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("build prometheus handler: %w", err)
	}

	mux.Handle("/metrics", metricsHandler)

	if meter != nil {
		if _, err := NewSchedulerMetrics(meter); err != nil {
			return nil, fmt.Errorf("register scheduler metrics: %w", err)
		}
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{Handler: mux}

	ds := &DiagnosticsServer{server: server, listener: listener}

	go func() {
		_ = server.Serve(listener)
	}()

	return ds, nil
}

// Addr returns the address the server is actually listening on.
func (ds *DiagnosticsServer) Addr() string {
	return ds.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (ds *DiagnosticsServer) Close(ctx context.Context) error {
	if err := ds.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
