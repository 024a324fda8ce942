package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simonvc/rentledger/internal/client"
	"github.com/simonvc/rentledger/internal/events"
	"github.com/simonvc/rentledger/internal/server"
	"github.com/simonvc/rentledger/internal/store"
	"github.com/simonvc/rentledger/internal/tui"
)

const embeddedAddr = "127.0.0.1:8888"

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL := cfg.Server.URL

		if !cmd.Flags().Changed("server") {
			// Start embedded server in background
			st, err := store.Open(cfg.DB.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			srv, publisher := embeddedServer(st)
			defer publisher.Close()
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					zlog.Error("embedded server stopped", zap.Error(err))
				}
			}()
			defer srv.Shutdown(context.Background())
			serverURL = "http://" + embeddedAddr

			if err := waitReady(client.New(serverURL), 5*time.Second); err != nil {
				return err
			}
		}

		app := tui.NewApp(client.New(serverURL))
		p := tea.NewProgram(app, tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

// embeddedServer builds the in-process server behind the TUI. Bubbletea owns
// the terminal, so the server and its event log stay silent.
func embeddedServer(st *store.Store) (*server.Server, events.Publisher) {
	quiet := zap.NewNop()
	publisher := newPublisher(quiet)
	return server.New(st, embeddedAddr, serverOptions(publisher, quiet)...), publisher
}

func waitReady(c *client.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		if err := c.Ping(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("timeout waiting for embedded server")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
