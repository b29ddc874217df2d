package main

import (
	"fmt"
	"strings"

	"github.com/koscakluka/ema-dialogue/core/retrieval"
	"github.com/spf13/cobra"
)

func newSearchCommand(c *cli) *cobra.Command {
	var showSummary bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the knowledge base the way a session would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			knowledge, err := loadKnowledgeBase(cmd.Context(), c.settings)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showSummary {
				fmt.Fprintf(out, "%s\n\n", knowledge.Summary())
			}

			query := strings.Join(args, " ")
			refs, err := knowledge.Search(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(refs) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, snippet := range retrieval.Snippets(refs) {
				fmt.Fprintf(out, "%d. %s (%.3f)\n   %s\n", i+1, snippet.Label, snippet.Score, snippet.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSummary, "summary", false, "print the knowledge summary before the results")
	return cmd
}
