package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowlayer/langbridge/internal/config"
	"github.com/flowlayer/langbridge/internal/inspector"
	"github.com/flowlayer/langbridge/internal/mcpserver"
	"github.com/flowlayer/langbridge/internal/observability"
	"github.com/flowlayer/langbridge/internal/status"
)

func newMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP introspection server on stdio",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport exposing
coordinator introspection and maintenance tools:
  - langbridge_inspector_data: full coordinator state snapshot
  - langbridge_cache_stats: result/type cache statistics
  - langbridge_clear_cache: clear the result and/or type cache
  - langbridge_reload_config: reload configuration from disk`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			configPath, _ := cobraCmd.Flags().GetString("config")

			providers, err := initObservability(observability.ModeInspector, debug)
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

			insp := inspector.New(inspector.Deps{
				ResultCache: coord.resultCache,
				TypeCache:   coord.typeCache,
				Pool:        coord.checker,
				Tracer:      coord.tracer,
				Logs:        coord.logs,
				StatusFn: func() status.State {
					return status.Derive(status.Inputs{
						Ready:             true,
						CheckerConfigured: coord.checkerConfigured,
						CheckerStarted:    coord.checkerStarted,
						LinterConfigured:  coord.linterConfigured,
						LinterStarted:     coord.linterStarted,
					})
				},
				ApplyConfig: func(newCfg *config.Config) error {
					coord.cfg = newCfg
					return nil
				},
			}, coord.cfg)

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return fmt.Errorf("init red metrics: %w", err)
			}

			srv := mcpserver.NewServer(mcpserver.ServerDeps{
				Backend: insp,
				Logger:  providers.Logger,
				Metrics: red,
				Tracer:  providers.Tracer,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")

	return cmd
}
