// Package cli wires the cobra commands that drive the ingestion
// pipeline.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	configfile "github.com/specrag/specrag-cli/internal/adapters/driven/config/file"
	"github.com/specrag/specrag-cli/internal/adapters/driven/embedding/openai"
	"github.com/specrag/specrag-cli/internal/adapters/driven/objectstore/filesystem"
	"github.com/specrag/specrag-cli/internal/adapters/driven/objectstore/gcs"
	"github.com/specrag/specrag-cli/internal/adapters/driven/storage/sqlite"
	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/core/services"
	"github.com/specrag/specrag-cli/internal/logger"
	"github.com/specrag/specrag-cli/internal/normalisers"
	"github.com/specrag/specrag-cli/internal/normalisers/pdf"
	"github.com/specrag/specrag-cli/internal/normalisers/text"
	"github.com/specrag/specrag-cli/internal/postprocessors"
	"github.com/specrag/specrag-cli/internal/postprocessors/chunker"
)

var (
	verbose   bool
	configDir string

	cfg   configfile.Config
	store *sqlite.Store
)

var rootCmd = &cobra.Command{
	Use:   "specrag",
	Short: "Ingest product and design documents into a searchable vector index",
	Long: `specrag scans an object store of PRDs and design exports, normalises
and chunks their content, generates embeddings and writes everything
into a local SQLite index through a durable, retryable job queue.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetVerbose(verbose)

		configStore, err := configfile.NewStore(configDir)
		if err != nil {
			return err
		}
		cfg, err = configStore.Load()
		if err != nil {
			return err
		}

		store, err = sqlite.New(filepath.Join(cfg.DataDir, "specrag.db"))
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable diagnostic output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.specrag)")
}

// Execute runs the CLI. Interrupts cancel the command context so
// long-running workers shut down cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// buildObjectStore creates the configured corpus backend.
func buildObjectStore(cmd *cobra.Command) (driven.ObjectStore, error) {
	switch cfg.ObjectStore.Backend {
	case "filesystem":
		if cfg.ObjectStore.Root == "" {
			return nil, fmt.Errorf("object_store.root is not configured")
		}
		return filesystem.New(cfg.ObjectStore.Root)
	case "gcs":
		if cfg.ObjectStore.Bucket == "" {
			return nil, fmt.Errorf("object_store.bucket is not configured")
		}
		return gcs.New(cmd.Context(), cfg.ObjectStore.Bucket)
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.ObjectStore.Backend)
	}
}

// buildRegistry assembles the normaliser registry.
func buildRegistry() driven.NormaliserRegistry {
	registry := normalisers.NewRegistry()
	registry.Register(text.New())
	registry.Register(pdf.New())
	return registry
}

// buildIngestor assembles the full per-file pipeline.
func buildIngestor(objects driven.ObjectStore) (*services.Ingestor, error) {
	embedder, err := openai.New(openai.Config{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring embedding service: %w", err)
	}

	batcher := services.NewEmbeddingBatcher(embedder,
		services.WithBatchSize(cfg.Embedding.BatchSize),
		services.WithBatchDelay(time.Duration(cfg.Embedding.BatchDelaySeconds)*time.Second))

	pipeline := postprocessors.NewPipeline(chunker.New())

	return services.NewIngestor(
		objects,
		buildRegistry(),
		pipeline,
		batcher,
		services.NewChangeDetector(store),
		services.NewPathClassifier(),
		store,
	), nil
}

// scanRoots maps the configured prefixes to document kinds.
func scanRoots() []services.Root {
	return []services.Root{
		{Prefix: cfg.ObjectStore.DesignPrefix, Kind: domain.KindDesign},
		{Prefix: cfg.ObjectStore.PRDPrefix, Kind: domain.KindPRD},
	}
}

// workerConfig maps config values onto the worker tuning.
func workerConfig() services.WorkerConfig {
	wc := services.DefaultWorkerConfig()
	if cfg.Worker.Concurrency > 0 {
		wc.Concurrency = cfg.Worker.Concurrency
	}
	if cfg.Worker.JobTimeoutSeconds > 0 {
		wc.JobTimeout = time.Duration(cfg.Worker.JobTimeoutSeconds) * time.Second
	}
	if cfg.Worker.BackoffBaseSeconds > 0 {
		wc.BackoffBase = time.Duration(cfg.Worker.BackoffBaseSeconds) * time.Second
	}
	return wc
}
