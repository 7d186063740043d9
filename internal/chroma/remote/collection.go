package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
)

type collection struct {
	client            *Client
	id                string
	name              string
	embeddingFunction string
}

var _ chroma.Collection = (*collection)(nil)

func (c *collection) Name() string {
	return c.name
}

func (c *collection) url(op string) string {
	u := c.client.base + "/" + url.PathEscape(c.id)
	if op != "" {
		u += "/" + op
	}
	return u
}

func (c *collection) embed(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := c.client.cfg.Embeddings.Get(c.embeddingFunction)
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, texts)
}

type addBody struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents,omitempty"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

func (c *collection) Add(ctx context.Context, req chroma.AddRequest) error {
	if err := chroma.ValidateAdd(req); err != nil {
		return err
	}
	vectors, err := c.embed(ctx, req.Documents)
	if err != nil {
		return err
	}
	body := addBody{IDs: req.IDs, Embeddings: vectors, Documents: req.Documents, Metadatas: req.Metadatas}
	return c.client.do(ctx, http.MethodPost, c.url("add"), body, nil)
}

type queryBody struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	WhereDocument   map[string]any `json:"where_document,omitempty"`
	Include         []string       `json:"include"`
}

type queryResponse struct {
	IDs        [][]string         `json:"ids"`
	Documents  [][]*string        `json:"documents"`
	Metadatas  [][]map[string]any `json:"metadatas"`
	Distances  [][]*float64       `json:"distances"`
	Embeddings [][][]float32      `json:"embeddings"`
}

// check rejects responses whose per-query lists do not line up with ids.
func (r *queryResponse) check() error {
	if err := sameShape("documents", r.IDs, r.Documents); err != nil {
		return err
	}
	if err := sameShape("metadatas", r.IDs, r.Metadatas); err != nil {
		return err
	}
	if err := sameShape("distances", r.IDs, r.Distances); err != nil {
		return err
	}
	return sameShape("embeddings", r.IDs, r.Embeddings)
}

func sameShape[T any](field string, ids [][]string, rows [][]T) error {
	if rows == nil {
		return nil
	}
	if len(rows) != len(ids) {
		return fmt.Errorf("malformed query response: %d %s lists for %d id lists", len(rows), field, len(ids))
	}
	for i, row := range rows {
		if row != nil && len(row) != len(ids[i]) {
			return fmt.Errorf("malformed query response: %s[%d] has %d entries for %d ids", field, i, len(row), len(ids[i]))
		}
	}
	return nil
}

func (c *collection) Query(ctx context.Context, req chroma.QueryRequest) (*chroma.QueryResult, error) {
	inc, err := chroma.ParseInclude(req.Include, true)
	if err != nil {
		return nil, err
	}
	vectors, err := c.embed(ctx, req.QueryTexts)
	if err != nil {
		return nil, err
	}

	include := req.Include
	if include == nil {
		include = []string{}
	}

	var out queryResponse
	body := queryBody{
		QueryEmbeddings: vectors,
		NResults:        req.NResults,
		Where:           req.Where,
		WhereDocument:   req.WhereDocument,
		Include:         include,
	}
	if err := c.client.do(ctx, http.MethodPost, c.url("query"), body, &out); err != nil {
		return nil, err
	}
	if err := out.check(); err != nil {
		return nil, err
	}

	res := chroma.NewQueryResult(len(out.IDs), inc, req.Include)
	copy(res.IDs, out.IDs)
	if inc.Documents && out.Documents != nil {
		for i, docs := range out.Documents {
			res.Documents[i] = derefStrings(docs)
		}
	}
	if inc.Metadatas && out.Metadatas != nil {
		copy(res.Metadatas, out.Metadatas)
	}
	if inc.Distances && out.Distances != nil {
		for i, ds := range out.Distances {
			res.Distances[i] = derefFloats(ds)
		}
	}
	if inc.Embeddings && out.Embeddings != nil {
		copy(res.Embeddings, out.Embeddings)
	}
	return res, nil
}

type getBody struct {
	IDs           []string       `json:"ids,omitempty"`
	Where         map[string]any `json:"where,omitempty"`
	WhereDocument map[string]any `json:"where_document,omitempty"`
	Include       []string       `json:"include"`
	Limit         *int           `json:"limit,omitempty"`
	Offset        *int           `json:"offset,omitempty"`
}

type getResponse struct {
	IDs        []string         `json:"ids"`
	Documents  []*string        `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

func (c *collection) Get(ctx context.Context, req chroma.GetRequest) (*chroma.GetResult, error) {
	inc, err := chroma.ParseInclude(req.Include, false)
	if err != nil {
		return nil, err
	}
	include := req.Include
	if include == nil {
		include = []string{}
	}

	var out getResponse
	body := getBody{
		IDs:           req.IDs,
		Where:         req.Where,
		WhereDocument: req.WhereDocument,
		Include:       include,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}
	if err := c.client.do(ctx, http.MethodPost, c.url("get"), body, &out); err != nil {
		return nil, err
	}

	res := chroma.NewGetResult(inc, req.Include)
	for i, id := range out.IDs {
		r := chroma.Record{ID: id}
		if i < len(out.Documents) && out.Documents[i] != nil {
			r.Document = *out.Documents[i]
		}
		if i < len(out.Metadatas) {
			r.Metadata = out.Metadatas[i]
		}
		if i < len(out.Embeddings) {
			r.Embedding = out.Embeddings[i]
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
	if err := c.client.do(ctx, http.MethodGet, c.url("count"), nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

type updateBody struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings,omitempty"`
	Documents  []string         `json:"documents,omitempty"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

func (c *collection) Update(ctx context.Context, req chroma.UpdateRequest) error {
	vectors := req.Embeddings
	if vectors == nil && req.Documents != nil {
		var err error
		if vectors, err = c.embed(ctx, req.Documents); err != nil {
			return err
		}
	}
	body := updateBody{IDs: req.IDs, Embeddings: vectors, Documents: req.Documents, Metadatas: req.Metadatas}
	return c.client.do(ctx, http.MethodPost, c.url("update"), body, nil)
}

func (c *collection) Delete(ctx context.Context, ids []string) error {
	return c.client.do(ctx, http.MethodPost, c.url("delete"), map[string]any{"ids": ids}, nil)
}

type modifyBody struct {
	NewName          *string        `json:"new_name,omitempty"`
	NewMetadata      map[string]any `json:"new_metadata,omitempty"`
	NewConfiguration *configuration `json:"new_configuration,omitempty"`
}

func (c *collection) Modify(ctx context.Context, req chroma.ModifyRequest) error {
	body := modifyBody{NewName: req.NewName, NewMetadata: req.NewMetadata}
	if !req.HNSW.IsZero() {
		hnsw := req.HNSW
		body.NewConfiguration = &configuration{HNSW: &hnsw}
	}
	if err := c.client.do(ctx, http.MethodPut, c.url(""), body, nil); err != nil {
		return fmt.Errorf("modify collection %s: %w", c.name, err)
	}
	if req.NewName != nil {
		c.name = *req.NewName
	}
	return nil
}

func derefStrings(in []*string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		if s != nil {
			out[i] = *s
		}
	}
	return out
}

func derefFloats(in []*float64) []float64 {
	out := make([]float64, len(in))
	for i, f := range in {
		if f != nil {
			out[i] = *f
		}
	}
	return out
}
