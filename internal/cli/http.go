package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/persona-mcp/internal/bridge"
	"github.com/khanglvm/persona-mcp/internal/httpapi"
	"github.com/khanglvm/persona-mcp/internal/version"
)

const shutdownTimeout = 10 * time.Second

var _ httpapi.Forwarder = (*bridge.Bridge)(nil)

// NewHTTPCmd creates the 'http' command that serves the REST API.
func NewHTTPCmd(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the HTTP API backed by an MCP server child process",
		Long: `Start the HTTP API.

The command launches 'persona-mcp serve' as a child process and forwards
every API request to it as an MCP tool call. Set http.apiKey (or
PERSONA_API_KEY) to require an X-API-Key header.`,
		Example: `  persona-mcp http
  persona-mcp http --addr 127.0.0.1:8080
  curl -s localhost:3000/search -d '{"query":"fine-tuning"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHTTP(cmd.Context(), opts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr and PORT)")
	return cmd
}

func runHTTP(parent context.Context, opts *RootOptions, addr string) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if addr == "" {
		addr = cfg.HTTP.Addr
	}
	timeout := time.Duration(cfg.HTTP.RequestTimeoutSeconds) * time.Second

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	args := []string{"serve"}
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bridge.Start(bridge.Command{Path: exe, Args: args}, bridge.Options{
		Timeout:    timeout,
		ClientName: "persona-mcp-http",
		Logger:     logger.Named("bridge"),
	})
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize MCP server: %w", err)
	}

	api := httpapi.New(b, httpapi.Options{
		APIKey:         cfg.HTTP.APIKey,
		RateLimit:      cfg.HTTP.RateLimitPerSecond,
		RequestTimeout: timeout,
		Version:        version.Version,
		Logger:         logger.Named("http"),
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP API listening", zap.String("addr", addr), zap.Bool("auth", cfg.HTTP.APIKey != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		var exitErr error
		select {
		case <-gctx.Done():
		case <-b.Done():
			exitErr = errors.New("MCP server process exited")
			if err := b.Err(); err != nil {
				exitErr = fmt.Errorf("MCP server process exited: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return exitErr
	})

	err = g.Wait()
	logger.Info("HTTP API stopped")
	return err
}
