package main

import (
	"context"
	"fmt"

	"pydex/internal/engine"
	"pydex/internal/errors"

	"github.com/spf13/cobra"
)

var (
	refreshFormat string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Bring the index up to date with the source tree",
	Long: `Scan the project for Python files and refresh the index incrementally.

Unchanged files (same content hash and modification time, no prior parse
error) are skipped. Files that vanished from disk are purged along with
their facts and edges. The dependency graph is rebuilt from the committed
facts after every refresh.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot()
	if err != nil {
		return errors.New(errors.InternalError, "Failed to resolve project root", err)
	}

	eng, err := engine.New(root, engine.Options{})
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck // Best effort cleanup

	stats, err := eng.RefreshIndex(context.Background())
	if err != nil {
		return errors.New(errors.StorageFailure, "Refresh failed", err)
	}

	if refreshFormat == string(FormatJSON) {
		return printJSON(stats)
	}

	fmt.Println("\n✓ Index refreshed")
	fmt.Printf("  Files scanned: %d\n", stats.FilesScanned)
	fmt.Printf("  Files indexed: %d\n", stats.FilesIndexed)
	fmt.Printf("  Files skipped: %d\n", stats.FilesSkipped)
	if stats.FilesDeleted > 0 {
		fmt.Printf("  Files removed: %d\n", stats.FilesDeleted)
	}
	if stats.ParseErrors > 0 {
		fmt.Printf("\n⚠ Parse errors: %d (degraded files are retried on the next refresh)\n", stats.ParseErrors)
	}
	fmt.Printf("  Symbols: %d\n", stats.SymbolsTotal)
	fmt.Printf("  Edges: %d\n", stats.EdgesTotal)
	fmt.Printf("  Duration: %dms\n", stats.ElapsedMs)

	return nil
}
