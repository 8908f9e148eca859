package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest course documents from a directory",
	Long: `Ingest every supported document (.txt, .md, .pdf, .docx) under dir, or
under the configured docs directory when dir is omitted. Courses that are
already indexed are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		dir := a.docs.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		report, err := a.ingestion.IngestDirectory(cmd.Context(), dir)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", dir, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "added: %d  skipped: %d  failed: %d  chunks: %d\n", report.Added, report.Skipped, report.Failed, report.Chunks)
		for _, title := range report.Courses {
			fmt.Fprintf(out, "  + %s\n", title)
		}
		return nil
	},
}
