// Package main is the entry point for the langbridged analysis coordination
// daemon: a cobra root with serve, mcp, and inspect subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowlayer/langbridge/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "langbridged",
		Short: "langbridge analysis coordination engine",
		Long: `langbridged coordinates a persistent checker pool and an ephemeral
linter pool behind a single analysis bridge, exposing results over an LSP
adapter and an MCP introspection surface.

Commands:
  serve    Run the analysis bridge over the LSP adapter (stdio)
  mcp      Run the MCP introspection server (stdio)
  inspect  Print a one-shot snapshot of coordinator state`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMCPCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "langbridged %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
