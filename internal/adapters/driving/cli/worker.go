package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/core/services"
	"github.com/specrag/specrag-cli/internal/logger"
)

var workerWatch bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a long-lived ingestion worker",
	Long: `Runs the queue worker until interrupted. With --watch, filesystem
backends additionally enqueue files as they change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		objects, err := buildObjectStore(cmd)
		if err != nil {
			return err
		}
		defer objects.Close()

		ingestor, err := buildIngestor(objects)
		if err != nil {
			return err
		}

		if workerWatch {
			watcher, ok := objects.(driven.Watcher)
			if !ok {
				return fmt.Errorf("the %q backend does not support --watch", cfg.ObjectStore.Backend)
			}
			for _, root := range scanRoots() {
				if err := watchAndEnqueue(cmd, watcher, root); err != nil {
					return err
				}
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Worker running. Press Ctrl+C to stop.")
		worker := services.NewWorker(store, ingestor, workerConfig(), nil)
		return worker.Run(cmd.Context())
	},
}

// watchAndEnqueue feeds change events under one root into the queue.
func watchAndEnqueue(cmd *cobra.Command, watcher driven.Watcher, root services.Root) error {
	events, err := watcher.Watch(cmd.Context(), root.Prefix)
	if err != nil {
		return fmt.Errorf("watching %s: %w", root.Prefix, err)
	}

	go func() {
		for ev := range events {
			_, created, err := store.Enqueue(cmd.Context(), &domain.IngestJob{
				StoragePath: ev.Path,
				Kind:        root.Kind,
				MaxAttempts: cfg.Worker.MaxAttempts,
			})
			if err != nil {
				logger.Warn("enqueueing changed file %s: %v", ev.Path, err)
				continue
			}
			if created {
				logger.Info("enqueued changed file %s", ev.Path)
			}
		}
	}()
	return nil
}

func init() {
	workerCmd.Flags().BoolVar(&workerWatch, "watch", false, "enqueue files as they change (filesystem backend)")
	rootCmd.AddCommand(workerCmd)
}
