package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/flowlayer/langbridge/internal/inspector"
	"github.com/flowlayer/langbridge/internal/observability"
	"github.com/flowlayer/langbridge/internal/status"
)

// newInspectCommand builds a one-shot snapshot of coordinator state and
// renders it as tables, without starting any long-lived server loop.
func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print a one-shot snapshot of coordinator state",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			configPath, _ := cobraCmd.Flags().GetString("config")

			providers, err := initObservability(observability.ModeInspector, false)
			if err != nil {
				return fmt.Errorf("init observability: %w", err)
			}
			defer func() { _ = providers.Shutdown(cobraCmd.Context()) }()

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
			}, coord.cfg)

			snap, err := insp.InspectorSnapshot(cobraCmd.Context())
			if err != nil {
				return fmt.Errorf("inspector snapshot: %w", err)
			}

			printSnapshot(snap.(inspector.Snapshot))

			return nil
		},
	}
}

func printSnapshot(snap inspector.Snapshot) {
	fmt.Fprintf(os.Stdout, "status: %s\n\n", snap.Status)

	cacheTbl := table.NewWriter()
	cacheTbl.SetOutputMirror(os.Stdout)
	cacheTbl.SetStyle(table.StyleLight)
	cacheTbl.AppendHeader(table.Row{"cache", "entries", "size", "hits", "misses", "evictions"})
	cacheTbl.AppendRow(table.Row{
		"result",
		snap.ResultCache.Entries,
		humanize.Bytes(uint64(snap.ResultCache.TotalBytes)), //nolint:gosec // non-negative byte counter
		snap.ResultCache.Hits,
		snap.ResultCache.Misses,
		snap.ResultCache.Evictions,
	})
	cacheTbl.AppendRow(table.Row{
		"type",
		snap.TypeCache.Entries,
		humanize.Bytes(uint64(snap.TypeCache.TotalBytes)), //nolint:gosec // non-negative byte counter
		snap.TypeCache.Hits,
		snap.TypeCache.Misses,
		snap.TypeCache.Evictions,
	})
	cacheTbl.Render()

	fmt.Fprintln(os.Stdout)

	workerTbl := table.NewWriter()
	workerTbl.SetOutputMirror(os.Stdout)
	workerTbl.SetStyle(table.StyleLight)
	workerTbl.AppendHeader(table.Row{"worker", "pid", "busy", "active uri", "requests"})

	for _, wrk := range snap.Workers {
		workerTbl.AppendRow(table.Row{wrk.Index, wrk.PID, wrk.Busy, wrk.ActiveURI, wrk.RequestCount})
	}

	workerTbl.AppendFooter(table.Row{"", "", "", "total", len(snap.Workers)})
	workerTbl.Render()

	fmt.Fprintf(os.Stdout, "\nrecent traces: %d, recent logs: %d\n", len(snap.RecentTraces), len(snap.RecentLogs))
}
