package main

import (
	"fmt"
	"strings"

	"pydex/internal/engine"
	"pydex/internal/errors"

	"github.com/spf13/cobra"
)

var (
	impactFormat   string
	impactMaxDepth int
)

var impactCmd = &cobra.Command{
	Use:   "impact <file>...",
	Short: "Show files affected by changes to the given files",
	Long: `Answer "what else is affected if these files change?" by walking the
reverse dependency graph from the given files.

Each impacted file is reported with its graph distance, an impact kind
(changed, direct, transitive), a confidence that decays with distance,
and the evidence source. Paths may be project-relative or absolute;
files not present in the index are ignored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().StringVar(&impactFormat, "format", "human", "Output format (json, human)")
	impactCmd.Flags().IntVar(&impactMaxDepth, "max-depth", 0, "Traversal depth cap (0 uses the configured default)")
	rootCmd.AddCommand(impactCmd)
}

func runImpact(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot()
	if err != nil {
		return errors.New(errors.InternalError, "Failed to resolve project root", err)
	}

	eng, err := engine.New(root, engine.Options{})
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck // Best effort cleanup

	report, err := eng.ImpactForFiles(args, impactMaxDepth)
	if err != nil {
		return errors.New(errors.StorageFailure, "Impact query failed", err)
	}

	if len(report.ChangedFiles) == 0 {
		return errors.New(errors.FileNotIndexed, "None of the given files are in the index", nil).
			WithDetails(map[string]interface{}{"files": args})
	}

	if impactFormat == string(FormatJSON) {
		return printJSON(report)
	}

	fmt.Printf("Impact of: %s\n", strings.Join(report.ChangedFiles, ", "))
	fmt.Printf("Max depth: %d\n\n", report.MaxDepth)

	for _, entry := range report.Impacted {
		if entry.Distance == 0 {
			continue
		}
		fmt.Printf("  d=%d  %.3f  %-10s  %s  (%s)\n",
			entry.Distance, entry.Confidence, entry.Kind, entry.FilePath, entry.Source)
	}

	fmt.Printf("\n%d direct, %d transitive\n", report.DirectCount, report.TransitiveCount)

	if report.Oracle.Enabled {
		if report.Oracle.Error != "" {
			fmt.Printf("\n⚠ Oracle degraded: %s\n", report.Oracle.Error)
		} else if len(report.Oracle.PredictedFiles) > 0 {
			fmt.Printf("\nOracle predicted: %s\n", strings.Join(report.Oracle.PredictedFiles, ", "))
		}
	}

	return nil
}
