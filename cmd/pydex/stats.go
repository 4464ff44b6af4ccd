package main

import (
	"fmt"

	"pydex/internal/engine"
	"pydex/internal/errors"

	"github.com/spf13/cobra"
)

var (
	statsFormat string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Long:  "Report persistent index counters: files, symbols, imports, calls, edges, and parse errors.",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot()
	if err != nil {
		return errors.New(errors.InternalError, "Failed to resolve project root", err)
	}

	eng, err := engine.New(root, engine.Options{})
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck // Best effort cleanup

	stats, err := eng.IndexStats()
	if err != nil {
		return errors.New(errors.StorageFailure, "Failed to read index statistics", err)
	}

	if statsFormat == string(FormatJSON) {
		return printJSON(stats)
	}

	fmt.Printf("Project: %s\n", stats.ProjectRoot)
	fmt.Printf("Database: %s\n\n", stats.DatabasePath)
	fmt.Printf("  Files: %d\n", stats.Counts.Files)
	fmt.Printf("  Symbols: %d\n", stats.Counts.Symbols)
	fmt.Printf("  Imports: %d\n", stats.Counts.Imports)
	fmt.Printf("  Calls: %d\n", stats.Counts.Calls)
	fmt.Printf("  Edges: %d\n", stats.Counts.Edges)
	if stats.Counts.ParseErrors > 0 {
		fmt.Printf("\n⚠ Files with parse errors: %d\n", stats.Counts.ParseErrors)
	}

	return nil
}
