// Package server provides the MCP server wrapper with lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/chroma-mcp/internal/tools"
)

// Name is the advertised server implementation name.
const Name = "chroma-mcp"

// shutdownTimeout bounds the graceful shutdown of the HTTP transport.
const shutdownTimeout = 5 * time.Second

// Server wraps the MCP server with dependencies and lifecycle management.
type Server struct {
	mcp        *mcp.Server
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
}

// New creates an MCP server advertising every tool in the dispatcher's catalog.
func New(version string, dispatcher *tools.Dispatcher, logger *slog.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    Name,
		Version: version,
	}

	s := &Server{
		mcp:        mcp.NewServer(impl, nil),
		dispatcher: dispatcher,
		logger:     logger,
	}
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(logger))
	s.registerTools()
	return s
}

// registerTools adds one raw tool per descriptor; arguments are validated by the dispatcher.
func (s *Server) registerTools() {
	for _, d := range s.dispatcher.Registry().List() {
		name := d.Name
		s.mcp.AddTool(&mcp.Tool{
			Name:        name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args any
			if req.Params != nil && len(req.Params.Arguments) > 0 {
				args = req.Params.Arguments
			}
			return tools.Envelope(s.dispatcher.Dispatch(ctx, name, args)), nil
		})
	}
	s.logger.Debug("registered tools", "count", len(s.dispatcher.Registry().Names()))
}

// Run serves on stdio and blocks until disconnect or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server", "transport", "http", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// HTTPHandler returns the streamable HTTP handler for this server.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
