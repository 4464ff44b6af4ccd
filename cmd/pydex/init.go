package main

import (
	"fmt"
	"os"
	"path/filepath"

	"pydex/internal/config"
	"pydex/internal/errors"
	"pydex/internal/logging"

	"github.com/spf13/cobra"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize pydex configuration",
	Long:  "Creates a .pydex/ directory with default configuration at the project root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (removes existing .pydex directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
	})

	root, err := resolveProjectRoot()
	if err != nil {
		return errors.New(errors.InternalError, "Failed to resolve project root", err)
	}

	stateDir := filepath.Join(root, config.StateDirName)
	if _, statErr := os.Stat(stateDir); statErr == nil {
		if !initForce {
			// Idempotent behavior: already initialized is success (CI-friendly)
			fmt.Println("pydex already initialized.")
			fmt.Printf("Configuration at: %s\n", filepath.Join(stateDir, "config.json"))
			fmt.Println("\nRun 'pydex init --force' to reinitialize.")
			return nil
		}
		if removeErr := os.RemoveAll(stateDir); removeErr != nil {
			return errors.New(errors.InternalError, "Failed to remove existing .pydex directory", removeErr)
		}
		logger.Info("Removed existing .pydex directory", nil)
	}

	cfg := config.DefaultConfig()
	cfg.ProjectRoot = "."
	if err := cfg.Save(root); err != nil {
		return errors.New(errors.InternalError, "Failed to write config file", err)
	}

	configPath := filepath.Join(stateDir, "config.json")
	logger.Info("pydex initialized successfully", map[string]interface{}{
		"config_path": configPath,
	})

	fmt.Println("pydex initialized successfully!")
	fmt.Printf("Configuration written to: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'pydex refresh' to build the index")
	fmt.Println("  2. Run 'pydex stats' to see what was indexed")

	return nil
}
