package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chroma-mcp/internal/config"
	"github.com/raphaelgruber/chroma-mcp/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (default)",
		Long: `Run the MCP server on stdio, or on streamable HTTP with --transport http.

Examples:
  chroma-mcp serve
  chroma-mcp serve --client-type persistent --data-dir ./data
  chroma-mcp serve --transport http --listen :8765`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, cleanup, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("chroma-mcp starting",
		"version", Version,
		"client_type", cfg.ClientType,
		"transport", cfg.Transport,
		"embedding_function", cfg.EmbeddingFunction,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rt, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	srv := server.New(Version, rt.dispatcher, logger)
	logger.Info("server ready, awaiting connections", "tools", len(rt.dispatcher.Registry().Names()))

	if cfg.Transport == config.TransportHTTP {
		err = srv.RunHTTP(ctx, cfg.Listen)
	} else {
		err = srv.Run(ctx)
	}

	logger.Info("shutdown complete", "stats", rt.metrics.Snapshot())
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
