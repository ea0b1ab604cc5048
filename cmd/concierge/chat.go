package main

import (
	"io"
	"os"

	"concierge-backend/internal/config"
	"concierge-backend/internal/conversation"
	"concierge-backend/internal/gateway"
	"concierge-backend/internal/logging"
	"concierge-backend/internal/ui/widget"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newChatCommand() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with Maya in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			// the terminal belongs to the widget, so logs go to a file or nowhere
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return errors.Wrap(err, "failed to open log file")
				}
				defer f.Close()
				w = f
			}
			logging.Setup(w, cfg.LogLevel, false)

			diagnostics, err := newDiagnostics(cfg)
			if err != nil {
				return err
			}

			gw := newGateway(cfg, diagnostics)
			changed, hook := widget.Notifier()
			store := conversation.NewStore(gw, conversation.WithOnChange(hook))
			model := widget.New(cmd.Context(), store, changed, gateway.SuggestedPrompts)

			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			store.Wait()
			gw.Wait()
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return cmd
}
