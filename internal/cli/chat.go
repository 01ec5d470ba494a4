package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"rag/internal/config"
	"rag/internal/logger"
	"rag/internal/service"
	"rag/internal/tui"
	"rag/internal/watcher"
)

var chatWatch bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive chat over the documents",
	Long: `Opens a terminal chat. Answers stream in as they are generated and each
one lists its sources.

Controls:
  Enter     - Ask
  Esc       - Stop the current answer
  PgUp/PgDn - Scroll
  Ctrl+C    - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatWatch, "watch", "w", false, "refresh the index when files in the source directory change")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, cfg *config.AppConfig, engine *service.Engine) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		if chatWatch || cfg.Watch.Enabled {
			if err := startWatcher(ctx, cfg, engine); err != nil {
				return err
			}
		}
		st, err := engine.Stats(ctx)
		if err != nil {
			return err
		}
		summary := fmt.Sprintf("%d documents from %s, answering with %s", st.DocumentCount, st.DataSourceType, st.LLMModel)
		_, err = tea.NewProgram(tui.New(ctx, engine, summary), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	})
}

func startWatcher(ctx context.Context, cfg *config.AppConfig, engine *service.Engine) error {
	if cfg.Source.Type != "directory" || cfg.Source.Directory == nil {
		return fmt.Errorf("--watch needs a directory source, configured source is %q", cfg.Source.Type)
	}
	debounce := time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
	w, err := watcher.New(cfg.Source.Directory.Path, cfg.Source.Directory.Extensions, debounce, engine)
	if err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Warn("watcher stopped: %v", err)
		}
	}()
	logger.Info("watching %s", cfg.Source.Directory.Path)
	return nil
}
