/*
Package cli implements the persona-mcp commands.

Every command loads the JSON configuration (creating it with defaults on first
use), builds the shared components with NewApp, and releases them on exit.
Command output goes to the command's writer; logs go to stderr.
*/
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/config"
	"github.com/khanglvm/persona-mcp/internal/logging"
)

// RootOptions holds the persistent flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCmd creates the persona-mcp command tree.
func NewRootCmd() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:   "persona-mcp",
		Short: "Persona suggestion and usage analytics over MCP",
		Long: `persona-mcp manages prompt personas and suggests the best one for a
given context.

It scores a context against keyword rules and the keyword history of past
activations, records every activation in a local analytics file, and exposes
all of it to AI clients as an MCP server (stdio) or a small HTTP API.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (default ~/.persona-mcp.json)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		NewServeCmd(opts),
		NewHTTPCmd(opts),
		NewListCmd(opts),
		NewCreateCmd(opts),
		NewDeleteCmd(opts),
		NewSuggestCmd(opts),
		NewAnalyticsCmd(opts),
		NewHistoryCmd(opts),
		NewVersionCmd(),
	)

	return root
}

// loadConfig reads and resolves the configuration named by opts.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.LoadOrCreate(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp loads the configuration and builds an App with its logger.
func openApp(opts *RootOptions) (*App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	app, err := NewApp(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Level, cfg.Logging.JSON)
}

// withApp runs fn with a fully built App and closes it afterwards.
func withApp(opts *RootOptions, fn func(app *App) error) error {
	app, err := openApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
		_ = app.Logger.Sync()
	}()
	return fn(app)
}
