package cmd

import (
	"github.com/repovis/repovis/internal/config"
	"github.com/repovis/repovis/internal/llm"
)

// newLLMProvider builds the configured completion provider, or nil when the
// config leaves the provider empty.
func newLLMProvider(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(cfg.Provider, cfg.Model)
}
