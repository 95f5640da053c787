package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/repovis/repovis/internal/config"
	"github.com/repovis/repovis/internal/engine"
	"github.com/repovis/repovis/internal/enrich"
	"github.com/repovis/repovis/internal/server"
	"github.com/repovis/repovis/internal/tree"
	"github.com/repovis/repovis/internal/walker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive graph for the configured repository",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	serveCmd.Flags().Bool("allow-all-origins", false, "allow all CORS origins")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}
	if allowAll, _ := cmd.Flags().GetBool("allow-all-origins"); allowAll {
		cfg.AllowAllOrigins = true
	}

	eng, store, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(server.Config{
		Port:     cfg.Port,
		AllowAll: cfg.AllowAllOrigins,
		TickRate: cfg.TickRate,
	}, eng, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// buildEngine assembles the full stack for the configured repository. The
// returned cleanup closes the analysis cache.
func buildEngine(cfg *config.Config) (*engine.Engine, *tree.Store, func(), error) {
	store, err := walker.BuildTree(walker.Config{
		RootDir:     cfg.RootDir,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
		MaxFileSize: cfg.MaxFileSize,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if verbose {
		log.Printf("ingested %d nodes from %s", store.Len(), cfg.RootDir)
	}

	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {}
	var cache *enrich.Cache
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
			return nil, nil, nil, fmt.Errorf("creating cache dir: %w", err)
		}
		cache, err = enrich.OpenCache(filepath.Join(cfg.CacheDir, "analysis.db"))
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup = func() { cache.Close() }
	}

	fetcher := walker.NewFetcher(cfg.RootDir, store.Root().ID, cfg.MaxFileSize)
	enricher := enrich.New(store, analyzer, fetcher, cache)

	eng := engine.New(store, enricher,
		engine.WithSelectionSink(func(n *tree.Node) {
			if verbose {
				log.Printf("selected %s (%s)", n.ID, n.Kind)
			}
		}),
	)
	return eng, store, cleanup, nil
}
