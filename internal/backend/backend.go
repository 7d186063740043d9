// Package backend builds the chroma collaborator selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
	"github.com/raphaelgruber/chroma-mcp/internal/chroma/local"
	"github.com/raphaelgruber/chroma-mcp/internal/chroma/remote"
	"github.com/raphaelgruber/chroma-mcp/internal/chroma/surreal"
	"github.com/raphaelgruber/chroma-mcp/internal/config"
	"github.com/raphaelgruber/chroma-mcp/internal/embedding"
)

// EmbeddingConfig extracts the embedding provider settings from cfg.
func EmbeddingConfig(cfg config.Config) embedding.Config {
	return embedding.Config{
		OllamaHost:   cfg.OllamaHost,
		OllamaModel:  cfg.OllamaModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		VoyageAPIKey: cfg.VoyageAPIKey,
	}
}

// New opens exactly one collaborator for cfg.ClientType. cfg must already be validated.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (chroma.Client, error) {
	if !embedding.Known(cfg.EmbeddingFunction) {
		return nil, fmt.Errorf("%w: unknown embedding function %q (known: %v)",
			chroma.ErrInvalidArgument, cfg.EmbeddingFunction, embedding.Names())
	}
	embeddings := embedding.NewProvider(EmbeddingConfig(cfg))

	switch cfg.ClientType {
	case config.ClientEphemeral:
		log.Info("using ephemeral client")
		return client(local.Open(local.Config{Embeddings: embeddings, Logger: log}))

	case config.ClientPersistent:
		log.Info("using persistent client", "data_dir", cfg.DataDir)
		return client(local.Open(local.Config{DataDir: cfg.DataDir, Embeddings: embeddings, Logger: log}))

	case config.ClientHTTP:
		base := remote.HTTPBaseURL(cfg.Host, cfg.Port, cfg.SSL)
		log.Info("using http client", "url", base)
		return client(remote.New(remote.Config{
			BaseURL:     base,
			Tenant:      cfg.Tenant,
			Database:    cfg.Database,
			Credentials: cfg.CustomAuthCredentials,
			Embeddings:  embeddings,
			Logger:      log,
		}))

	case config.ClientCloud:
		log.Info("using cloud client", "tenant", cfg.Tenant, "database", cfg.Database)
		return client(remote.New(remote.Config{
			BaseURL:    remote.CloudURL,
			Tenant:     cfg.Tenant,
			Database:   cfg.Database,
			APIKey:     cfg.APIKey,
			Embeddings: embeddings,
			Logger:     log,
		}))

	case config.ClientSurreal:
		log.Info("using surreal client", "url", cfg.SurrealDBURL)
		return client(surreal.NewClient(ctx, surreal.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, embeddings, log))

	default:
		return nil, fmt.Errorf("unknown client type %q", cfg.ClientType)
	}
}

// client drops the concrete type so a failed constructor yields a nil interface.
func client[T chroma.Client](c T, err error) (chroma.Client, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
