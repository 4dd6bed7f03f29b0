package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var statusHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue and corpus status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		counts, err := store.Counts(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, statusHeaderStyle.Render("Queue"))
		fmt.Fprintf(out, "  queued:    %d\n", counts.Queued)
		fmt.Fprintf(out, "  active:    %d\n", counts.Active)
		fmt.Fprintf(out, "  completed: %d\n", counts.Completed)
		fmt.Fprintf(out, "  failed:    %d\n", counts.Failed)
		if counts.Total() > 0 {
			done := counts.Completed + counts.Failed
			fmt.Fprintf(out, "  progress:  %d%%\n", done*100/counts.Total())
		}

		dims, err := store.Dimensions(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, statusHeaderStyle.Render("Corpus"))
		if dims == 0 {
			fmt.Fprintln(out, "  no embeddings written yet")
			return nil
		}
		fmt.Fprintf(out, "  embedding dimensionality: %d\n", dims)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
