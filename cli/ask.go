package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itish2003/courserag/models"
)

var (
	askSession  string
	askNoIngest bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question about the indexed courses",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// The in-memory index starts empty, so a one-shot question needs the docs loaded first.
		if !askNoIngest {
			if _, err := a.ingestion.IngestDirectory(ctx, a.docs.Dir); err != nil {
				a.log.Warn("ingestion before ask failed", "dir", a.docs.Dir, "error", err)
			}
		}

		answer, sources, sessionID, err := a.rag.Answer(ctx, strings.Join(args, " "), askSession)
		if err != nil {
			return err
		}
		printAnswer(cmd.OutOrStdout(), answer, sources, sessionID)
		return nil
	},
}

func printAnswer(w io.Writer, answer string, sources []models.Source, sessionID string) {
	fmt.Fprintln(w, answer)
	if len(sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, s := range sources {
			if s.Link != "" {
				fmt.Fprintf(w, "  - %s (%s)\n", s.Label(), s.Link)
				continue
			}
			fmt.Fprintf(w, "  - %s\n", s.Label())
		}
	}
	fmt.Fprintf(w, "\nsession: %s\n", sessionID)
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Session id to continue (a new one is created when empty)")
	askCmd.Flags().BoolVar(&askNoIngest, "no-ingest", false, "Skip ingesting the docs directory before answering")
}
