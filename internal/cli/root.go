// Package cli provides the command-line interface for chroma-mcp.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chroma-mcp/internal/backend"
	"github.com/raphaelgruber/chroma-mcp/internal/config"
	"github.com/raphaelgruber/chroma-mcp/internal/metrics"
	"github.com/raphaelgruber/chroma-mcp/internal/telemetry"
	"github.com/raphaelgruber/chroma-mcp/internal/tools"
)

// Version is set at build time.
var Version = "0.1.0"

// NewRootCmd builds the command tree. Running the root command serves MCP.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chroma-mcp",
		Short: "MCP server for Chroma collections and documents",
		Long: `chroma-mcp exposes Chroma collection and document operations as MCP tools.

The backend is selected with --client-type (or CHROMA_CLIENT_TYPE):
  ephemeral   in-memory SQLite store (default)
  persistent  SQLite store in --data-dir
  http        self-hosted Chroma server at --host/--port
  cloud       Chroma Cloud with --tenant, --database and --api-key
  surreal     SurrealDB at --surrealdb-url`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chroma-mcp %s\n", Version)
		},
	}
}

// loadConfig reads and validates configuration, then builds the logger it names.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, func() error, error) {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg, err := config.Load(cmd.Flags(), bootstrap)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, cleanup, err := config.SetupLogger(cmd.ErrOrStderr(), cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}

// app holds the services shared by serve and call.
type app struct {
	dispatcher *tools.Dispatcher
	metrics    *metrics.Collector
	close      func()
}

// newApp opens the backend and wires the dispatcher with metrics and tracing.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	observer, err := telemetry.NewObserver()
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("create tool observer: %w", err)
	}

	client, err := backend.New(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("open %s client: %w", cfg.ClientType, err)
	}

	collector := metrics.NewCollector()
	dispatcher := tools.NewDispatcher(&tools.Dependencies{
		Backend:           client,
		Logger:            logger,
		EmbeddingFunction: cfg.EmbeddingFunction,
		Metrics:           collector,
		Observer:          observer,
	})

	return &app{
		dispatcher: dispatcher,
		metrics:    collector,
		close: func() {
			closeCtx := context.Background()
			if err := client.Close(closeCtx); err != nil {
				logger.Warn("failed to close backend", "error", err)
			}
			if err := shutdownTracing(closeCtx); err != nil {
				logger.Warn("failed to flush traces", "error", err)
			}
		},
	}, nil
}
