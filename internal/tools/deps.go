// Package tools provides the tool catalog, request validation and dispatch for the
// chroma MCP server.
package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
	"github.com/raphaelgruber/chroma-mcp/internal/metrics"
)

// Dependencies holds shared services for tool handlers.
// Built once at startup and passed to the dispatcher; handlers never construct their own.
type Dependencies struct {
	Backend chroma.Client
	Logger  *slog.Logger

	// EmbeddingFunction is used by create_collection when the request names none.
	EmbeddingFunction string

	// Metrics and Observer are optional.
	Metrics  *metrics.Collector
	Observer Observer
}

// DispatchObservation describes one completed dispatch.
type DispatchObservation struct {
	Tool     string
	Duration time.Duration
	Success  bool
	// ErrorKind is empty on success.
	ErrorKind string
}

// Observer is notified around every dispatch.
type Observer interface {
	// StartDispatch is called before routing. The returned function is called exactly once
	// with the outcome.
	StartDispatch(ctx context.Context, tool string) (context.Context, func(DispatchObservation))
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
