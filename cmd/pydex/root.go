package main

import (
	"path/filepath"

	"pydex/internal/version"

	"github.com/spf13/cobra"
)

var (
	// rootFlag is the CLI --root flag value
	rootFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pydex",
	Short: "pydex - incremental Python source indexer",
	Long: `pydex maintains an incremental index of a Python source tree: extracted
symbols, imports, and call sites backed by SQLite, plus a derived file-level
dependency graph used to answer impact questions ("what else is affected if
these files change?").`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("pydex version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", ".",
		"Project root directory")
}

// resolveProjectRoot expands the --root flag to an absolute path
func resolveProjectRoot() (string, error) {
	return filepath.Abs(rootFlag)
}
