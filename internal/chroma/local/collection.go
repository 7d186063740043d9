package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
)

type collection struct {
	store *Store
	id    string
	name  string
}

var _ chroma.Collection = (*collection)(nil)

type settings struct {
	embeddingFunction string
	hnsw              chroma.HNSWConfig
	dimension         int
}

func (c *collection) Name() string {
	return c.name
}

func (c *collection) loadSettings(ctx context.Context, q queryer) (settings, error) {
	var (
		st   settings
		hnsw string
	)
	err := q.QueryRowContext(ctx,
		"SELECT embedding_function, hnsw, dimension FROM collections WHERE id = ?", c.id,
	).Scan(&st.embeddingFunction, &hnsw, &st.dimension)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("%w: %s", chroma.ErrNotFound, c.name)
	}
	if err != nil {
		return st, fmt.Errorf("load collection settings: %w", err)
	}
	if err := json.Unmarshal([]byte(hnsw), &st.hnsw); err != nil {
		return st, fmt.Errorf("decode hnsw: %w", err)
	}
	return st, nil
}

func (c *collection) embed(ctx context.Context, fn string, texts []string) ([][]float32, error) {
	e, err := c.store.embeddings.Get(fn)
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, texts)
}

func (c *collection) Add(ctx context.Context, req chroma.AddRequest) error {
	if err := chroma.ValidateAdd(req); err != nil {
		return err
	}
	st, err := c.loadSettings(ctx, c.store.db)
	if err != nil {
		return err
	}
	vectors, err := c.embed(ctx, st.embeddingFunction, req.Documents)
	if err != nil {
		return err
	}
	dim, err := chroma.CheckDimension(st.dimension, vectors)
	if err != nil {
		return err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range req.IDs {
		var md map[string]any
		if req.Metadatas != nil {
			md = req.Metadatas[i]
		}
		meta, err := marshalNullable(md)
		if err != nil {
			return err
		}
		emb, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO documents (collection_id, id, document, metadata, embedding)
VALUES (?, ?, ?, ?, ?)`, c.id, id, req.Documents[i], meta, string(emb))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: document id %q already exists in collection %s", chroma.ErrInvalidArgument, id, c.name)
			}
			return fmt.Errorf("insert document: %w", err)
		}
	}
	if st.dimension == 0 && dim != 0 {
		if _, err := tx.ExecContext(ctx, "UPDATE collections SET dimension = ? WHERE id = ?", dim, c.id); err != nil {
			return fmt.Errorf("set dimension: %w", err)
		}
	}
	return tx.Commit()
}

func (c *collection) Query(ctx context.Context, req chroma.QueryRequest) (*chroma.QueryResult, error) {
	inc, err := chroma.ParseInclude(req.Include, true)
	if err != nil {
		return nil, err
	}
	filter, err := chroma.CompileFilter(req.Where, req.WhereDocument)
	if err != nil {
		return nil, err
	}
	if req.NResults <= 0 {
		return nil, fmt.Errorf("%w: n_results must be positive", chroma.ErrInvalidArgument)
	}
	st, err := c.loadSettings(ctx, c.store.db)
	if err != nil {
		return nil, err
	}
	vectors, err := c.embed(ctx, st.embeddingFunction, req.QueryTexts)
	if err != nil {
		return nil, err
	}

	records, err := c.load(ctx, nil)
	if err != nil {
		return nil, err
	}
	candidates := records[:0]
	for _, r := range records {
		if filter.Match(r) {
			candidates = append(candidates, r)
		}
	}

	res := chroma.NewQueryResult(len(req.QueryTexts), inc, req.Include)
	for qi, vec := range vectors {
		neighbors, err := chroma.Nearest(st.hnsw.SpaceOrDefault(), vec, candidates, req.NResults)
		if err != nil {
			return nil, err
		}
		res.IDs[qi] = []string{}
		if inc.Documents {
			res.Documents[qi] = []string{}
		}
		if inc.Metadatas {
			res.Metadatas[qi] = []map[string]any{}
		}
		if inc.Distances {
			res.Distances[qi] = []float64{}
		}
		if inc.Embeddings {
			res.Embeddings[qi] = [][]float32{}
		}
		for _, n := range neighbors {
			res.IDs[qi] = append(res.IDs[qi], n.Record.ID)
			if inc.Documents {
				res.Documents[qi] = append(res.Documents[qi], n.Record.Document)
			}
			if inc.Metadatas {
				res.Metadatas[qi] = append(res.Metadatas[qi], n.Record.Metadata)
			}
			if inc.Distances {
				res.Distances[qi] = append(res.Distances[qi], n.Distance)
			}
			if inc.Embeddings {
				res.Embeddings[qi] = append(res.Embeddings[qi], n.Record.Embedding)
			}
		}
	}
	return res, nil
}

func (c *collection) Get(ctx context.Context, req chroma.GetRequest) (*chroma.GetResult, error) {
	inc, err := chroma.ParseInclude(req.Include, false)
	if err != nil {
		return nil, err
	}
	filter, err := chroma.CompileFilter(req.Where, req.WhereDocument)
	if err != nil {
		return nil, err
	}
	if (req.Limit != nil && *req.Limit < 0) || (req.Offset != nil && *req.Offset < 0) {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", chroma.ErrInvalidArgument)
	}

	res := chroma.NewGetResult(inc, req.Include)
	if filter.Empty() {
		records, err := c.loadPage(ctx, req.IDs, req.Limit, req.Offset)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			res.AppendRecord(r, inc)
		}
		return res, nil
	}

	records, err := c.load(ctx, req.IDs)
	if err != nil {
		return nil, err
	}
	skip := 0
	if req.Offset != nil {
		skip = *req.Offset
	}
	for _, r := range records {
		if !filter.Match(r) {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if req.Limit != nil && len(res.IDs) >= *req.Limit {
			break
		}
		res.AppendRecord(r, inc)
	}
	return res, nil
}

func (c *collection) Peek(ctx context.Context, limit int) (*chroma.GetResult, error) {
	return c.Get(ctx, chroma.GetRequest{
		Include: []string{chroma.IncludeDocuments, chroma.IncludeMetadatas, chroma.IncludeEmbeddings},
		Limit:   &limit,
	})
}

func (c *collection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection_id = ?", c.id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (c *collection) Update(ctx context.Context, req chroma.UpdateRequest) error {
	st, err := c.loadSettings(ctx, c.store.db)
	if err != nil {
		return err
	}
	existing, err := c.load(ctx, req.IDs)
	if err != nil {
		return err
	}
	byID := make(map[string]chroma.Record, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
	}
	for _, id := range req.IDs {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("%w: document id %q does not exist in collection %s", chroma.ErrInvalidArgument, id, c.name)
		}
	}

	vectors := req.Embeddings
	if vectors == nil && req.Documents != nil {
		if vectors, err = c.embed(ctx, st.embeddingFunction, req.Documents); err != nil {
			return err
		}
	}
	if vectors != nil {
		if _, err := chroma.CheckDimension(st.dimension, vectors); err != nil {
			return err
		}
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range req.IDs {
		r := byID[id]
		if req.Documents != nil {
			r.Document = req.Documents[i]
		}
		if vectors != nil {
			r.Embedding = vectors[i]
		}
		if req.Metadatas != nil {
			r.Metadata = chroma.MergeMetadata(r.Metadata, req.Metadatas[i])
		}
		meta, err := marshalNullable(r.Metadata)
		if err != nil {
			return err
		}
		emb, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET document = ?, metadata = ?, embedding = ? WHERE collection_id = ? AND id = ?",
			r.Document, meta, string(emb), c.id, id); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
	}
	return tx.Commit()
}

func (c *collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, c.id)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := c.store.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection_id = ? AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (c *collection) Modify(ctx context.Context, req chroma.ModifyRequest) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin modify: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st, err := c.loadSettings(ctx, tx)
	if err != nil {
		return err
	}

	if req.NewName != nil && *req.NewName != c.name {
		if err := chroma.ValidateName(*req.NewName); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE collections SET name = ? WHERE id = ?", *req.NewName, c.id); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", chroma.ErrAlreadyExists, *req.NewName)
			}
			return fmt.Errorf("rename collection: %w", err)
		}
	}
	if req.NewMetadata != nil {
		meta, err := marshalNullable(req.NewMetadata)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE collections SET metadata = ? WHERE id = ?", meta, c.id); err != nil {
			return fmt.Errorf("update metadata: %w", err)
		}
	}
	if !req.HNSW.IsZero() {
		if req.HNSW.Space != nil && *req.HNSW.Space != st.hnsw.SpaceOrDefault() {
			return fmt.Errorf("%w: the distance space of an existing collection cannot be changed", chroma.ErrInvalidArgument)
		}
		hnsw, err := json.Marshal(st.hnsw.Merge(req.HNSW))
		if err != nil {
			return fmt.Errorf("marshal hnsw: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE collections SET hnsw = ? WHERE id = ?", string(hnsw), c.id); err != nil {
			return fmt.Errorf("update hnsw: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit modify: %w", err)
	}
	if req.NewName != nil {
		c.name = *req.NewName
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// load returns the collection's records in insertion order, restricted to ids when given.
func (c *collection) load(ctx context.Context, ids []string) ([]chroma.Record, error) {
	return c.loadPage(ctx, ids, nil, nil)
}

// loadPage loads documents in insertion order, applying limit and offset in SQL.
func (c *collection) loadPage(ctx context.Context, ids []string, limit, offset *int) ([]chroma.Record, error) {
	query := "SELECT id, document, metadata, embedding FROM documents WHERE collection_id = ?"
	args := []any{c.id}
	if len(ids) > 0 {
		query += " AND id IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += " ORDER BY seq ASC"
	if limit != nil || offset != nil {
		lim, off := -1, 0
		if limit != nil {
			lim = *limit
		}
		if offset != nil {
			off = *offset
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, lim, off)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	var records []chroma.Record
	for rows.Next() {
		var (
			r    chroma.Record
			meta sql.NullString
			emb  string
		)
		if err := rows.Scan(&r.ID, &r.Document, &meta, &emb); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if r.Metadata, err = unmarshalNullable(meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(emb), &r.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
