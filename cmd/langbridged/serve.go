package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowlayer/langbridge/internal/lspadapter"
	"github.com/flowlayer/langbridge/internal/observability"
	"github.com/flowlayer/langbridge/pkg/version"
)

func newServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis bridge over the LSP adapter on stdio",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			configPath, _ := cobraCmd.Flags().GetString("config")

			providers, err := initObservability(observability.ModeBridge, debug)
			if err != nil {
				return fmt.Errorf("init observability: %w", err)
			}

			defer func() {
				if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			poolMetrics, err := observability.NewPoolMetrics(providers.Meter)
			if err != nil {
				return fmt.Errorf("init pool metrics: %w", err)
			}

			coord, err := bootstrap(configPath, providers, poolMetrics)
			if err != nil {
				return fmt.Errorf("bootstrap coordinator: %w", err)
			}
			defer coord.shutdown()

			server := lspadapter.NewServer(coord.bridge)
			server.Run()

			return nil
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	return cmd
}

func initObservability(mode observability.AppMode, debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = mode
	cfg.LogJSON = true

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return observability.Init(cfg)
}
