package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rag/internal/config"
	"rag/internal/domain"
	"rag/internal/service"
)

var (
	addText string
	addID   string
)

var addCmd = &cobra.Command{
	Use:   "add [file...]",
	Short: "Add documents to the source",
	Long: `Stores each file, or the text given with --text, in the configured
source and indexes it immediately. The vocabulary is not rebuilt, so new rare
terms carry full weight only after the next refresh.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addText, "text", "", "document text to add instead of files")
	addCmd.Flags().StringVar(&addID, "id", "", "document id (with --text; generated when empty)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	var docs []domain.Document
	switch {
	case addText != "" && len(args) > 0:
		return errors.New("use either --text or files, not both")
	case addText != "":
		docs = append(docs, domain.Document{ID: addID, Content: addText})
	case len(args) == 0:
		return errors.New("nothing to add: pass files or --text")
	default:
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)
			docs = append(docs, domain.Document{
				ID:       strings.TrimSuffix(name, filepath.Ext(name)),
				Content:  string(data),
				Metadata: map[string]any{"origin": path},
			})
		}
	}

	out := cmd.OutOrStdout()
	return withEngine(cmd, func(ctx context.Context, _ *config.AppConfig, engine *service.Engine) error {
		for _, doc := range docs {
			id, err := engine.AddDocument(ctx, doc)
			if err != nil {
				return fmt.Errorf("add %s: %w", doc.ID, err)
			}
			fmt.Fprintf(out, "added %s\n", id)
		}
		return nil
	})
}
