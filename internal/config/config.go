// Package config loads pydex configuration from .pydex/config.json with
// optional per-project overrides declared in pydex.toml.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// StateDirName is the project-local hidden directory holding pydex state
const StateDirName = ".pydex"

// ManifestFile is the optional project declaration at the project root
const ManifestFile = "pydex.toml"

// Config represents the complete pydex configuration
type Config struct {
	Version     int    `json:"version" mapstructure:"version"`
	ProjectRoot string `json:"projectRoot" mapstructure:"projectRoot"`

	Index   IndexConfig   `json:"index" mapstructure:"index"`
	Impact  ImpactConfig  `json:"impact" mapstructure:"impact"`
	Oracle  OracleConfig  `json:"oracle" mapstructure:"oracle"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// IndexConfig controls file enumeration and parsing
type IndexConfig struct {
	// Excludes are extra path prefixes/globs skipped during scanning,
	// in addition to the built-in skip directories.
	Excludes []string `json:"excludes" mapstructure:"excludes"`

	// UseGitignore enables .gitignore-aware scanning
	UseGitignore bool `json:"useGitignore" mapstructure:"useGitignore"`
}

// ImpactConfig controls impact traversal
type ImpactConfig struct {
	// MaxDepth is the default BFS depth cap for impact queries
	MaxDepth int `json:"maxDepth" mapstructure:"maxDepth"`
}

// OracleConfig controls the optional consequence predictor
type OracleConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:     1,
		ProjectRoot: ".",
		Index: IndexConfig{
			Excludes:     []string{},
			UseGitignore: true,
		},
		Impact: ImpactConfig{
			MaxDepth: 8,
		},
		Oracle: OracleConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <projectRoot>/.pydex/config.json,
// then applies pydex.toml overrides when the manifest exists.
func LoadConfig(projectRoot string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("projectRoot", ".")
	v.SetDefault("index.useGitignore", true)
	v.SetDefault("impact.maxDepth", 8)
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("logging.format", "human")
	v.SetDefault("logging.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, StateDirName))

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: stay on defaults.
	} else {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	manifest, err := LoadManifest(projectRoot)
	if err != nil {
		return nil, err
	}
	if manifest != nil {
		manifest.applyTo(cfg)
	}

	return cfg, nil
}

// Save writes the configuration to <projectRoot>/.pydex/config.json
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, StateDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Impact.MaxDepth < 1 {
		return fmt.Errorf("impact.maxDepth must be >= 1, got %d", c.Impact.MaxDepth)
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return fmt.Errorf("logging.format must be human or json, got %q", c.Logging.Format)
	}
	return nil
}

// Manifest is the optional pydex.toml project declaration. Only fields
// that are set override the loaded configuration.
type Manifest struct {
	Index struct {
		Excludes     []string `toml:"excludes"`
		UseGitignore *bool    `toml:"use_gitignore"`
	} `toml:"index"`

	Impact struct {
		MaxDepth int `toml:"max_depth"`
	} `toml:"impact"`

	Oracle struct {
		Enabled *bool `toml:"enabled"`
	} `toml:"oracle"`
}

// LoadManifest reads pydex.toml at the project root. Returns nil when
// the manifest does not exist.
func LoadManifest(projectRoot string) (*Manifest, error) {
	path := filepath.Join(projectRoot, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ManifestFile, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}
	return &m, nil
}

func (m *Manifest) applyTo(cfg *Config) {
	if len(m.Index.Excludes) > 0 {
		cfg.Index.Excludes = append(cfg.Index.Excludes, m.Index.Excludes...)
	}
	if m.Index.UseGitignore != nil {
		cfg.Index.UseGitignore = *m.Index.UseGitignore
	}
	if m.Impact.MaxDepth > 0 {
		cfg.Impact.MaxDepth = m.Impact.MaxDepth
	}
	if m.Oracle.Enabled != nil {
		cfg.Oracle.Enabled = *m.Oracle.Enabled
	}
}
