package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rag/internal/config"
	"rag/internal/service"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index and configuration statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withEngine(cmd, func(ctx context.Context, _ *config.AppConfig, engine *service.Engine) error {
		st, err := engine.Stats(ctx)
		if err != nil {
			return err
		}
		if statsJSON {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal stats: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Initialized:\t%t\n", st.Initialized)
		fmt.Fprintf(tw, "Documents:\t%d\n", st.DocumentCount)
		fmt.Fprintf(tw, "Source:\t%s\n", st.DataSourceType)
		fmt.Fprintf(tw, "Model:\t%s\n", st.LLMModel)
		fmt.Fprintf(tw, "Top K:\t%d\n", st.TopK)
		fmt.Fprintf(tw, "Similarity threshold:\t%.2f\n", st.SimilarityThreshold)
		fmt.Fprintf(tw, "Embedding dimension:\t%d\n", st.EmbeddingDimension)
		return tw.Flush()
	})
}
