package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repovis/repovis/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "repovis",
	Short: "Interactive force-directed visualization of a codebase",
	Long: `Repovis ingests a source tree and serves it as an interactive
force-directed graph: folders and files expand on demand, and files are
enriched with AI-extracted functions, classes and components the first
time they are opened.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".repovis.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads and validates the configured file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
