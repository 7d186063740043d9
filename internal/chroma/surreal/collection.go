package surreal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
)

type collection struct {
	client *Client
	cid    string
	name   string
}

var _ chroma.Collection = (*collection)(nil)

type documentRow struct {
	CollectionID string         `json:"collection_id"`
	DocID        string         `json:"doc_id"`
	Document     string         `json:"document"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Embedding    []float32      `json:"embedding"`
	Seq          int64          `json:"seq"`
	Distance     float64        `json:"distance,omitempty"`
}

func (d documentRow) record() chroma.Record {
	return chroma.Record{ID: d.DocID, Document: d.Document, Metadata: d.Metadata, Embedding: d.Embedding}
}

func (c *collection) Name() string {
	return c.name
}

func (c *collection) settings(ctx context.Context) (*collectionRow, error) {
	rows, err := query[collectionRow](ctx, c.client.db,
		"SELECT cid, name, embedding_function, hnsw, dimension FROM chroma_collection WHERE cid = $cid",
		map[string]any{"cid": c.cid})
	if err != nil {
		return nil, fmt.Errorf("load collection settings: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", chroma.ErrNotFound, c.name)
	}
	return &rows[0], nil
}

func (c *collection) embed(ctx context.Context, fn string, texts []string) ([][]float32, error) {
	e, err := c.client.embeddings.Get(fn)
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, texts)
}

func (c *collection) Add(ctx context.Context, req chroma.AddRequest) error {
	if err := chroma.ValidateAdd(req); err != nil {
		return err
	}
	st, err := c.settings(ctx)
	if err != nil {
		return err
	}
	vectors, err := c.embed(ctx, st.EmbeddingFunction, req.Documents)
	if err != nil {
		return err
	}
	dim, err := chroma.CheckDimension(st.Dimension, vectors)
	if err != nil {
		return err
	}

	seq := time.Now().UnixNano()
	docs := make([]documentRow, len(req.IDs))
	for i, id := range req.IDs {
		docs[i] = documentRow{
			CollectionID: c.cid,
			DocID:        id,
			Document:     req.Documents[i],
			Embedding:    vectors[i],
			Seq:          seq + int64(i),
		}
		if req.Metadatas != nil {
			docs[i].Metadata = req.Metadatas[i]
		}
	}

	_, err = surrealdb.Query[any](ctx, c.client.db, `
		BEGIN TRANSACTION;
		FOR $d IN $docs { CREATE chroma_document CONTENT $d; };
		UPDATE chroma_collection SET dimension = $dim WHERE cid = $cid AND dimension = 0;
		COMMIT TRANSACTION;
	`, map[string]any{"docs": docs, "dim": dim, "cid": c.cid})
	if err != nil {
		return fmt.Errorf("add documents: %w", wrapQueryError(err, chroma.ErrInvalidArgument))
	}
	return nil
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
	st, err := c.settings(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := c.embed(ctx, st.EmbeddingFunction, req.QueryTexts)
	if err != nil {
		return nil, err
	}
	if _, err := chroma.CheckDimension(st.Dimension, vectors); err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT doc_id, document, metadata, embedding, seq, %s AS distance
		FROM chroma_document
		WHERE collection_id = $cid
		ORDER BY distance ASC, seq ASC
	`, distanceExpr(st.HNSW.SpaceOrDefault()))

	res := chroma.NewQueryResult(len(vectors), inc, req.Include)
	for qi, vec := range vectors {
		rows, err := query[documentRow](ctx, c.client.db, sql, map[string]any{"cid": c.cid, "emb": vec})
		if err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
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
		for _, row := range rows {
			if len(res.IDs[qi]) >= req.NResults {
				break
			}
			if !filter.Match(row.record()) {
				continue
			}
			res.IDs[qi] = append(res.IDs[qi], row.DocID)
			if inc.Documents {
				res.Documents[qi] = append(res.Documents[qi], row.Document)
			}
			if inc.Metadatas {
				res.Metadatas[qi] = append(res.Metadatas[qi], row.Metadata)
			}
			if inc.Distances {
				res.Distances[qi] = append(res.Distances[qi], row.Distance)
			}
			if inc.Embeddings {
				res.Embeddings[qi] = append(res.Embeddings[qi], row.Embedding)
			}
		}
	}
	return res, nil
}

func (c *collection) load(ctx context.Context, ids []string) ([]documentRow, error) {
	sql := "SELECT doc_id, document, metadata, embedding, seq FROM chroma_document WHERE collection_id = $cid"
	vars := map[string]any{"cid": c.cid}
	if len(ids) > 0 {
		sql += " AND doc_id IN $ids"
		vars["ids"] = ids
	}
	sql += " ORDER BY seq ASC"

	rows, err := query[documentRow](ctx, c.client.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return rows, nil
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

	rows, err := c.load(ctx, req.IDs)
	if err != nil {
		return nil, err
	}

	res := chroma.NewGetResult(inc, req.Include)
	skip := 0
	if req.Offset != nil {
		skip = *req.Offset
	}
	for _, row := range rows {
		r := row.record()
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
	rows, err := query[struct {
		Count int `json:"count"`
	}](ctx, c.client.db, "SELECT count() FROM chroma_document WHERE collection_id = $cid GROUP ALL",
		map[string]any{"cid": c.cid})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

func (c *collection) Update(ctx context.Context, req chroma.UpdateRequest) error {
	st, err := c.settings(ctx)
	if err != nil {
		return err
	}
	existing, err := c.load(ctx, req.IDs)
	if err != nil {
		return err
	}
	byID := make(map[string]documentRow, len(existing))
	for _, row := range existing {
		byID[row.DocID] = row
	}
	for _, id := range req.IDs {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("%w: document id %q does not exist in collection %s", chroma.ErrInvalidArgument, id, c.name)
		}
	}

	vectors := req.Embeddings
	if vectors == nil && req.Documents != nil {
		if vectors, err = c.embed(ctx, st.EmbeddingFunction, req.Documents); err != nil {
			return err
		}
	}
	if vectors != nil {
		if _, err := chroma.CheckDimension(st.Dimension, vectors); err != nil {
			return err
		}
	}

	docs := make([]documentRow, len(req.IDs))
	for i, id := range req.IDs {
		row := byID[id]
		if req.Documents != nil {
			row.Document = req.Documents[i]
		}
		if vectors != nil {
			row.Embedding = vectors[i]
		}
		if req.Metadatas != nil {
			row.Metadata = chroma.MergeMetadata(row.Metadata, req.Metadatas[i])
		}
		docs[i] = row
	}

	_, err = surrealdb.Query[any](ctx, c.client.db, `
		BEGIN TRANSACTION;
		FOR $d IN $docs {
			UPDATE chroma_document
			SET document = $d.document, metadata = $d.metadata, embedding = $d.embedding
			WHERE collection_id = $cid AND doc_id = $d.doc_id;
		};
		COMMIT TRANSACTION;
	`, map[string]any{"docs": docs, "cid": c.cid})
	if err != nil {
		return fmt.Errorf("update documents: %w", wrapQueryError(err, chroma.ErrInvalidArgument))
	}
	return nil
}

func (c *collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := surrealdb.Query[any](ctx, c.client.db,
		"DELETE chroma_document WHERE collection_id = $cid AND doc_id IN $ids",
		map[string]any{"cid": c.cid, "ids": ids})
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (c *collection) Modify(ctx context.Context, req chroma.ModifyRequest) error {
	st, err := c.settings(ctx)
	if err != nil {
		return err
	}

	var clauses []string
	vars := map[string]any{"cid": c.cid}
	if req.NewName != nil && *req.NewName != c.name {
		if err := chroma.ValidateName(*req.NewName); err != nil {
			return err
		}
		clauses = append(clauses, "name = $name")
		vars["name"] = *req.NewName
	}
	if req.NewMetadata != nil {
		clauses = append(clauses, "metadata = $metadata")
		vars["metadata"] = req.NewMetadata
	}
	if !req.HNSW.IsZero() {
		if req.HNSW.Space != nil && *req.HNSW.Space != st.HNSW.SpaceOrDefault() {
			return fmt.Errorf("%w: the distance space of an existing collection cannot be changed", chroma.ErrInvalidArgument)
		}
		clauses = append(clauses, "hnsw = $hnsw")
		vars["hnsw"] = st.HNSW.Merge(req.HNSW)
	}
	if len(clauses) == 0 {
		return nil
	}

	_, err = surrealdb.Query[any](ctx, c.client.db,
		"UPDATE chroma_collection SET "+strings.Join(clauses, ", ")+" WHERE cid = $cid", vars)
	if err != nil {
		return fmt.Errorf("modify collection %s: %w", c.name, wrapQueryError(err, chroma.ErrAlreadyExists))
	}
	if name, ok := vars["name"].(string); ok {
		c.name = name
	}
	return nil
}
