// Package config loads repovis configuration from a YAML file with
// REPOVIS_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config holds all settings.
type Config struct {
	RootDir  string `koanf:"root_dir" yaml:"root_dir"`
	Port     int    `koanf:"port" yaml:"port"`
	Provider string `koanf:"provider" yaml:"provider"` // openai, openrouter, ollama or empty for static analysis
	Model    string `koanf:"model" yaml:"model"`
	CacheDir string `koanf:"cache_dir" yaml:"cache_dir"`

	MaxFileSize int64    `koanf:"max_file_size" yaml:"max_file_size"`
	Include     []string `koanf:"include" yaml:"include"`
	Exclude     []string `koanf:"exclude" yaml:"exclude"`

	AllowAllOrigins bool `koanf:"allow_all_origins" yaml:"allow_all_origins"`
	TickRate        int  `koanf:"tick_rate" yaml:"tick_rate"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		RootDir:     ".",
		Port:        7430,
		CacheDir:    ".repovis",
		MaxFileSize: 1 << 20,
		TickRate:    30,
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (REPOVIS_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// REPOVIS_TICK_RATE -> tick_rate, etc.
	if err := k.Load(env.Provider("REPOVIS_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "REPOVIS_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values. Empty means the
// static tree-sitter analyzer is used.
var validProviders = map[string]bool{
	"":           true,
	"openai":     true,
	"openrouter": true,
	"ollama":     true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		return fmt.Errorf("root_dir is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, openrouter, ollama or empty", c.Provider)
	}
	if c.Provider != "" && c.Model == "" {
		return fmt.Errorf("model is required when a provider is set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be non-negative")
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive")
	}
	return nil
}
