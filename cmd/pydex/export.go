package main

import (
	"fmt"
	"os"

	"pydex/internal/engine"
	"pydex/internal/errors"
	"pydex/internal/export"

	"github.com/spf13/cobra"
)

var (
	exportFormat   string
	exportOutput   string
	exportCompress bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a full index snapshot",
	Long: `Serialize the complete index (files, symbols, edges, counters) as JSON
or YAML for external tools. With --compress the output is a zstd stream.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Snapshot format (json, yaml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().BoolVar(&exportCompress, "compress", false, "Compress the snapshot with zstd")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot()
	if err != nil {
		return errors.New(errors.InternalError, "Failed to resolve project root", err)
	}

	eng, err := engine.New(root, engine.Options{})
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck // Best effort cleanup

	snap, err := export.Build(eng.Store(), root)
	if err != nil {
		return errors.New(errors.StorageFailure, "Failed to assemble snapshot", err)
	}

	out := os.Stdout
	if exportOutput != "" {
		f, createErr := os.Create(exportOutput)
		if createErr != nil {
			return errors.New(errors.InternalError, "Failed to create output file", createErr)
		}
		defer f.Close() //nolint:errcheck // Best effort cleanup
		out = f
	}

	if err := export.Write(out, snap, exportFormat, exportCompress); err != nil {
		return err
	}

	if exportOutput != "" {
		fmt.Fprintf(os.Stderr, "Snapshot written to %s\n", exportOutput)
	}
	return nil
}
