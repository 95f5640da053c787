package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/repovis/repovis/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err == nil {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("%s exists, overwrite", cfgFile),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()

	rootPrompt := promptui.Prompt{
		Label:   "Repository root directory",
		Default: cfg.RootDir,
	}
	rootDir, err := rootPrompt.Run()
	if err != nil {
		return fmt.Errorf("root selection: %w", err)
	}
	cfg.RootDir = rootDir

	providerPrompt := promptui.Select{
		Label: "Analysis backend",
		Items: []string{
			"static — tree-sitter symbol extraction, no API key needed",
			"openai",
			"openrouter",
			"ollama",
		},
	}
	idx, _, err := providerPrompt.Run()
	if err != nil {
		return fmt.Errorf("provider selection: %w", err)
	}

	switch idx {
	case 1:
		cfg.Provider = "openai"
		cfg.Model = "gpt-4o-mini"
	case 2:
		cfg.Provider = "openrouter"
		cfg.Model = "anthropic/claude-3.5-haiku"
	case 3:
		cfg.Provider = "ollama"
		cfg.Model = "llama3.1"
	}

	if cfg.Provider != "" {
		modelPrompt := promptui.Prompt{
			Label:   "Model",
			Default: cfg.Model,
		}
		model, err := modelPrompt.Run()
		if err != nil {
			return fmt.Errorf("model selection: %w", err)
		}
		cfg.Model = model
	}

	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			if _, err := strconv.Atoi(s); err != nil {
				return fmt.Errorf("must be a number")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return fmt.Errorf("port selection: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(cfgFile); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", cfgFile)
	return nil
}
