package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/search"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
func NewServeCmd(opts *RootOptions) *cobra.Command {
	var noIndex bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the persona MCP server using stdio transport.

Personas are exposed as persona://<name> resources and managed through tools
(create_persona, suggest_persona, chain_personas, get_analytics, ...).
Persona files and knowledge-base documents are indexed for keyword search
and re-indexed when they change on disk.`,
		Example: `  # Run directly
  persona-mcp serve

  # Register with an MCP client
  claude mcp add persona -- persona-mcp serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, noIndex)
		},
	}

	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Disable the knowledge search index")
	return cmd
}

// runServe starts the MCP server with stdio transport and signal handling.
// It returns when stdin closes or on SIGINT/SIGTERM.
func runServe(ctx context.Context, opts *RootOptions, noIndex bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return withApp(opts, func(app *App) error {
		logger := app.Logger

		var index *search.Indexer
		if !noIndex {
			idx, watcher, err := startIndex(ctx, app)
			if err != nil {
				logger.Warn("knowledge search disabled", zap.Error(err))
			} else {
				index = idx
				defer func() {
					watcher.Stop()
					_ = index.Close()
				}()
			}
		}

		server := app.MCPServer(index)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Run()
		}()

		logger.Info("MCP server started",
			zap.String("personaDir", app.Config.Paths.PersonaDir),
			zap.Bool("index", index != nil))

		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			return nil

		case <-ctx.Done():
			return nil

		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		}
	})
}

// startIndex builds the search index and starts watching the persona and
// knowledge-base directories.
func startIndex(ctx context.Context, app *App) (*search.Indexer, *search.Watcher, error) {
	index, err := search.NewIndexer(app.Logger)
	if err != nil {
		return nil, nil, err
	}
	watcher, err := search.NewWatcher(index, app.Personas, app.Knowledge, app.Logger)
	if err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	if err := watcher.Start(ctx); err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	return index, watcher, nil
}
