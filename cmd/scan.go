package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/repovis/repovis/internal/config"
	"github.com/repovis/repovis/internal/enrich"
	"github.com/repovis/repovis/internal/walker"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Pre-analyze every file to warm the analysis cache",
	Long: `Walks the configured repository and runs the analyzer over every
file, storing results in the cache so that expanding files in the
visualizer is instant.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Int("concurrency", 4, "max parallel analyses")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = 4
	}

	store, err := walker.BuildTree(walker.Config{
		RootDir:     cfg.RootDir,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
		MaxFileSize: cfg.MaxFileSize,
	})
	if err != nil {
		return err
	}

	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		return err
	}

	if cfg.CacheDir == "" {
		return fmt.Errorf("scan requires cache_dir to be set")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	cache, err := enrich.OpenCache(filepath.Join(cfg.CacheDir, "analysis.db"))
	if err != nil {
		return err
	}
	defer cache.Close()

	fetcher := walker.NewFetcher(cfg.RootDir, store.Root().ID, cfg.MaxFileSize)
	enricher := enrich.New(store, analyzer, fetcher, cache)

	ids := walker.FileIDs(store)
	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetDescription("Analyzing files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(concurrency)

	var failed atomic.Int64
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := enricher.Enrich(ctx, id); err != nil {
				// Soft failure: record and move on, matching the
				// visualizer's retry-on-click behavior.
				failed.Add(1)
				if verbose {
					log.Printf("scan: %s: %v", id, err)
				}
			}
			bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	bar.Finish()

	n := int(failed.Load())
	fmt.Printf("Analyzed %d files (%d failed)\n", len(ids)-n, n)
	return nil
}

// buildAnalyzer picks the configured LLM analyzer or falls back to static
// tree-sitter extraction when no provider is set.
func buildAnalyzer(cfg *config.Config) (enrich.Analyzer, error) {
	provider, err := newLLMProvider(cfg)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		log.Printf("no LLM provider configured; using static symbol extraction")
		return enrich.NewStaticAnalyzer(), nil
	}
	return enrich.NewLLMAnalyzer(provider, cfg.Model), nil
}
