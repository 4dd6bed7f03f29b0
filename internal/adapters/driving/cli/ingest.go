package cli

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driving"
	"github.com/specrag/specrag-cli/internal/core/services"
	"github.com/specrag/specrag-cli/internal/retry"
)

var ingestForce bool

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	okStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	skipStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	failStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scan the object store and ingest new or changed files",
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

		scanner := services.NewScanner(objects, store, buildRegistry(), scanRoots(),
			services.WithJobMaxAttempts(cfg.Worker.MaxAttempts))
		enqueued, err := scanner.Scan(cmd.Context(), ingestForce)
		if err != nil {
			return fmt.Errorf("scanning object store: %w", err)
		}

		counts, err := store.Counts(cmd.Context())
		if err != nil {
			return err
		}
		pending := counts.Queued + counts.Active
		if pending == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to ingest.")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d new jobs, %d pending.\n", enqueued, pending)

		bar := progressbar.NewOptions(pending,
			progressbar.OptionSetDescription("ingesting"),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		var mu sync.Mutex
		var summary driving.RunSummary
		reporter := func(job *domain.IngestJob, outcome *driving.Outcome, err error) {
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				// Retried attempts come back through the queue; only
				// count an attempt as progress when it is terminal.
				if retry.IsTransient(err) && job.AttemptCount < job.MaxAttempts {
					return
				}
				summary.Failed++
			case outcome.Kind == driving.OutcomeSkipped:
				summary.Skipped++
			default:
				summary.Ingested++
				summary.Chunks += outcome.ChunkCount
			}
			bar.Add(1)
		}

		worker := services.NewWorker(store, ingestor, workerConfig(), reporter)
		if err := worker.RunUntilDrained(cmd.Context()); err != nil {
			return err
		}
		bar.Finish()

		printSummary(cmd, summary)
		return nil
	},
}

func printSummary(cmd *cobra.Command, summary driving.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, summaryTitleStyle.Render("Ingestion run complete"))
	fmt.Fprintf(out, "  %s %d files (%d chunks)\n",
		okStyle.Render("ingested:"), summary.Ingested, summary.Chunks)
	fmt.Fprintf(out, "  %s  %d files\n", skipStyle.Render("skipped:"), summary.Skipped)
	if summary.Failed > 0 {
		fmt.Fprintf(out, "  %s   %d files (see 'specrag queue list --state failed')\n",
			failStyle.Render("failed:"), summary.Failed)
	}
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-ingest files even when unchanged")
	rootCmd.AddCommand(ingestCmd)
}
