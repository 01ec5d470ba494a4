package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rag/internal/config"
	"rag/internal/domain"
	"rag/internal/service"
)

var (
	askTopK     int
	askNoStream bool
	askJSON     bool
	askSystem   string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the documents",
	Long: `Retrieves the passages most similar to the question and streams the
generated answer, followed by the sources it was based on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "print the answer only when complete")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	askCmd.Flags().StringVar(&askSystem, "system", "", "override the system prompt")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	opts := domain.QueryOptions{TopK: askTopK, SystemPrompt: askSystem}
	out := cmd.OutOrStdout()

	return withEngine(cmd, func(ctx context.Context, _ *config.AppConfig, engine *service.Engine) error {
		if askJSON || askNoStream {
			resp, err := engine.Query(ctx, question, opts)
			if err != nil {
				return err
			}
			if askJSON {
				data, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal response: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprintln(out, resp.Answer)
			printSources(out, resp.Sources, resp.LowConfidence)
			return nil
		}

		events, err := engine.QueryStream(ctx, question, opts)
		if err != nil {
			return err
		}
		var (
			sources []domain.Source
			low     bool
		)
		for ev := range events {
			switch ev.Type {
			case domain.EventSources:
				sources, low = ev.Sources, ev.LowConfidence
			case domain.EventContent:
				fmt.Fprint(out, ev.Content)
			case domain.EventError:
				fmt.Fprintln(out)
				return ev.Err
			case domain.EventDone:
				fmt.Fprintln(out)
				printSources(out, sources, low)
			}
		}
		return ctx.Err()
	})
}

func printSources(w io.Writer, sources []domain.Source, low bool) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	if low {
		fmt.Fprintln(w, "Sources (low confidence, nothing matched closely):")
	} else {
		fmt.Fprintln(w, "Sources:")
	}
	for i, s := range sources {
		fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, s.ID, s.Score)
	}
}
