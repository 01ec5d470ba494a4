package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rag/internal/config"
	"rag/internal/service"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "List the passages most similar to a query",
	Long: `Runs retrieval only, without generating an answer. Results below the
similarity threshold are dropped unless nothing passes it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default top_k from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	return withEngine(cmd, func(ctx context.Context, _ *config.AppConfig, engine *service.Engine) error {
		results, err := engine.Retrieve(ctx, query, searchLimit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		sources := service.Sources(results)
		if searchJSON {
			data, err := json.MarshalIndent(sources, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal results: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		if len(sources) == 0 {
			fmt.Fprintln(out, "No results found.")
			return nil
		}
		for i, s := range sources {
			fmt.Fprintf(out, "[%d] %s (%.3f)\n", i+1, s.ID, s.Score)
			fmt.Fprintf(out, "    %s\n\n", strings.Join(strings.Fields(s.Content), " "))
		}
		return nil
	})
}
