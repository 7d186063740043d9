package surreal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
	"github.com/raphaelgruber/chroma-mcp/internal/embedding"
)

var _ chroma.Client = (*Client)(nil)

type collectionRow struct {
	CID               string            `json:"cid"`
	Name              string            `json:"name"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	EmbeddingFunction string            `json:"embedding_function"`
	HNSW              chroma.HNSWConfig `json:"hnsw"`
	Dimension         int               `json:"dimension"`
	Seq               int64             `json:"seq"`
}

// query runs a single-statement query and returns its rows.
func query[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return []T{}, nil
	}
	return (*results)[0].Result, nil
}

// ListCollections returns collection names in creation order.
func (c *Client) ListCollections(ctx context.Context, limit, offset *int) ([]string, error) {
	sql := "SELECT name, seq FROM chroma_collection ORDER BY seq ASC"
	vars := map[string]any{}
	if limit != nil {
		if *limit < 0 {
			return nil, fmt.Errorf("%w: limit must not be negative", chroma.ErrInvalidArgument)
		}
		sql += " LIMIT $limit"
		vars["limit"] = *limit
	}
	if offset != nil {
		if *offset < 0 {
			return nil, fmt.Errorf("%w: offset must not be negative", chroma.ErrInvalidArgument)
		}
		sql += " START $offset"
		vars["offset"] = *offset
	}

	rows, err := query[collectionRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names, nil
}

// CreateCollection creates a collection row keyed by a fresh uuid.
func (c *Client) CreateCollection(ctx context.Context, name string, opts chroma.CreateOptions) (chroma.Collection, error) {
	if err := chroma.ValidateName(name); err != nil {
		return nil, err
	}
	fn := opts.EmbeddingFunction
	if fn == "" {
		fn = chroma.DefaultEmbeddingFunction
	}
	if !embedding.Known(fn) {
		return nil, fmt.Errorf("%w: unknown embedding function %q", chroma.ErrInvalidArgument, fn)
	}
	if !chroma.ValidSpace(opts.HNSW.SpaceOrDefault()) {
		return nil, fmt.Errorf("%w: unknown space %q", chroma.ErrInvalidArgument, opts.HNSW.SpaceOrDefault())
	}

	row := collectionRow{
		CID:               uuid.NewString(),
		Name:              name,
		Metadata:          opts.Metadata,
		EmbeddingFunction: fn,
		HNSW:              opts.HNSW,
		Seq:               time.Now().UnixNano(),
	}
	if _, err := surrealdb.Query[any](ctx, c.db, "CREATE chroma_collection CONTENT $row", map[string]any{"row": row}); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, wrapQueryError(err, chroma.ErrAlreadyExists))
	}

	c.logger.Debug("created collection", "name", name, "cid", row.CID, "embedding_function", fn)
	return &collection{client: c, cid: row.CID, name: name}, nil
}

func (c *Client) lookup(ctx context.Context, name string) (*collectionRow, error) {
	rows, err := query[collectionRow](ctx, c.db,
		"SELECT cid, name, metadata, embedding_function, hnsw, dimension, seq FROM chroma_collection WHERE name = $name",
		map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", chroma.ErrNotFound, name)
	}
	return &rows[0], nil
}

// GetCollection resolves a collection by name.
func (c *Client) GetCollection(ctx context.Context, name string) (chroma.Collection, error) {
	row, err := c.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return &collection{client: c, cid: row.CID, name: row.Name}, nil
}

// DeleteCollection removes the collection and its documents in one transaction.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	row, err := c.lookup(ctx, name)
	if err != nil {
		return err
	}
	_, err = surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		DELETE chroma_document WHERE collection_id = $cid;
		DELETE chroma_collection WHERE cid = $cid;
		COMMIT TRANSACTION;
	`, map[string]any{"cid": row.CID})
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", name, wrapQueryError(err, chroma.ErrAlreadyExists))
	}
	return nil
}
