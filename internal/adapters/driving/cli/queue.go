package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

var (
	queueListState string
	queueListLimit int
)

var queueStateStyles = map[domain.JobState]lipgloss.Style{
	domain.JobQueued:    lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
	domain.JobActive:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	domain.JobCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	domain.JobFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the ingestion job queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var states []domain.JobState
		if queueListState != "" {
			state := domain.JobState(queueListState)
			switch state {
			case domain.JobQueued, domain.JobActive, domain.JobCompleted, domain.JobFailed:
				states = []domain.JobState{state}
			default:
				return fmt.Errorf("unknown state %q (queued|active|completed|failed)", queueListState)
			}
		}

		jobs, err := store.List(cmd.Context(), states, queueListLimit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
			return nil
		}

		out := cmd.OutOrStdout()
		for _, job := range jobs {
			style, ok := queueStateStyles[job.State]
			if !ok {
				style = lipgloss.NewStyle()
			}
			line := fmt.Sprintf("%-9s  %-6s  attempt %d/%d  %s",
				style.Render(string(job.State)), job.Kind,
				job.AttemptCount, job.MaxAttempts, job.StoragePath)
			if job.LastError != "" {
				line += "\n           " + truncate(job.LastError, 120)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-queue terminally failed jobs with a fresh attempt budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := store.RetryTerminal(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Re-queued %d failed jobs.\n", n)
		return nil
	},
}

var queueResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete completed and failed jobs from the queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := store.ResetTerminal(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d terminal jobs.\n", n)
		return nil
	},
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func init() {
	queueListCmd.Flags().StringVar(&queueListState, "state", "", "filter by state")
	queueListCmd.Flags().IntVar(&queueListLimit, "limit", 50, "maximum jobs to show")
	queueCmd.AddCommand(queueListCmd, queueRetryCmd, queueResetCmd)
	rootCmd.AddCommand(queueCmd)
}
