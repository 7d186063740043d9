package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
	"github.com/raphaelgruber/chroma-mcp/internal/metrics"
	"github.com/raphaelgruber/chroma-mcp/internal/tools"
)

func newTestDispatcher(t *testing.T, backend *fakeBackend) *tools.Dispatcher {
	t.Helper()
	return tools.NewDispatcher(&tools.Dependencies{
		Backend: backend,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func requireKind(t *testing.T, err error, kind tools.Kind) *tools.Error {
	t.Helper()
	require.Error(t, err)
	var te *tools.Error
	require.True(t, errors.As(err, &te), "error should be *tools.Error, got %T", err)
	assert.Equal(t, kind, te.Kind, "unexpected kind for %q", te.Message)
	return te
}

func TestDispatchScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("list collections", func(t *testing.T) {
		backend := newFakeBackend()
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "list_collections", map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta"}, res)
		assert.Equal(t, []string{"list_collections"}, backend.Calls())
	})

	t.Run("add documents generates ids", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "add_documents", map[string]any{
			"collection_name": "c",
			"documents":       []string{"hello", "world"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Successfully added 2 documents to collection c", res)
		assert.Equal(t, []string{"0", "1"}, backend.collections["c"].lastAdd.IDs)
		assert.Equal(t, []string{"hello", "world"}, backend.collections["c"].lastAdd.Documents)
	})

	t.Run("add documents keeps caller ids", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		_, err := d.Dispatch(ctx, "add_documents", json.RawMessage(`{"collection_name":"c","documents":["a"],"ids":["doc-1"],"metadatas":[{"k":"v"}]}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"doc-1"}, backend.collections["c"].lastAdd.IDs)
		assert.Equal(t, []map[string]any{{"k": "v"}}, backend.collections["c"].lastAdd.Metadatas)
	})

	t.Run("query applies defaults", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "query_documents", map[string]any{
			"collection_name": "c",
			"query_texts":     []string{"q"},
		})
		require.NoError(t, err)
		require.IsType(t, &chroma.QueryResult{}, res)

		q := backend.collections["c"].lastQuery
		assert.Equal(t, 5, q.NResults)
		assert.Equal(t, []string{"documents", "metadatas", "distances"}, q.Include)
		assert.Nil(t, q.Where)
	})

	t.Run("query forwards filters", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		_, err := d.Dispatch(ctx, "query_documents", map[string]any{
			"collection_name": "c",
			"query_texts":     []string{"q"},
			"n_results":       2,
			"where_filter":    map[string]any{"topic": "go"},
			"where_document":  map[string]any{"$contains": "x"},
			"include":         []string{"documents"},
		})
		require.NoError(t, err)

		q := backend.collections["c"].lastQuery
		assert.Equal(t, 2, q.NResults)
		assert.Equal(t, map[string]any{"topic": "go"}, q.Where)
		assert.Equal(t, map[string]any{"$contains": "x"}, q.WhereDocument)
		assert.Equal(t, []string{"documents"}, q.Include)
	})

	t.Run("get applies default include", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		_, err := d.Dispatch(ctx, "get_documents", map[string]any{"collection_name": "c", "limit": 10})
		require.NoError(t, err)

		g := backend.collections["c"].lastGet
		assert.Equal(t, []string{"documents", "metadatas"}, g.Include)
		require.NotNil(t, g.Limit)
		assert.Equal(t, 10, *g.Limit)
		assert.Nil(t, g.Offset)
	})

	t.Run("update with mismatched documents", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		_, err := d.Dispatch(ctx, "update_documents", map[string]any{
			"collection_name": "c",
			"ids":             []string{"a", "b"},
			"documents":       []string{"only one"},
		})
		te := requireKind(t, err, tools.KindValidation)
		assert.Equal(t, "Length of 'documents' list must match length of 'ids' list.", te.Message)
		assert.Equal(t, "update_documents", te.Tool)
		assert.Empty(t, backend.Calls(), "backend must not be called on validation failure")
	})

	t.Run("process thought raises total", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend())

		res, err := d.Dispatch(ctx, "process_thought", map[string]any{
			"session_id":          "s1",
			"thought":             "think",
			"thought_number":      7,
			"total_thoughts":      3,
			"next_thought_needed": true,
		})
		require.NoError(t, err)
		assert.Equal(t, tools.ThoughtResponse{
			SessionID:         "s1",
			ThoughtNumber:     7,
			TotalThoughts:     7,
			NextThoughtNeeded: true,
		}, res)
	})

	t.Run("process thought failure is a result", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend())

		res, err := d.Dispatch(ctx, "process_thought", map[string]any{
			"session_id":          "",
			"thought":             "think",
			"thought_number":      1,
			"total_thoughts":      1,
			"next_thought_needed": false,
		})
		require.NoError(t, err)
		resp := res.(tools.ThoughtResponse)
		assert.Equal(t, "failed", resp.Status)
		assert.Equal(t, "Invalid sessionId: must be provided", resp.Error)
	})
}

func TestDispatchValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		tool    string
		payload map[string]any
		want    string
	}{
		{
			name:    "add empty documents",
			tool:    "add_documents",
			payload: map[string]any{"collection_name": "c", "documents": []string{}},
			want:    "The 'documents' list cannot be empty.",
		},
		{
			name:    "add ids mismatch",
			tool:    "add_documents",
			payload: map[string]any{"collection_name": "c", "documents": []string{"a", "b"}, "ids": []string{"x"}},
			want:    "Length of 'ids' list must match length of 'documents' list.",
		},
		{
			name:    "add metadatas mismatch",
			tool:    "add_documents",
			payload: map[string]any{"collection_name": "c", "documents": []string{"a"}, "metadatas": []map[string]any{{}, {}}},
			want:    "Length of 'metadatas' list must match length of 'documents' list.",
		},
		{
			name:    "query empty texts",
			tool:    "query_documents",
			payload: map[string]any{"collection_name": "c", "query_texts": []string{}},
			want:    "The 'query_texts' list cannot be empty.",
		},
		{
			name:    "update empty ids",
			tool:    "update_documents",
			payload: map[string]any{"collection_name": "c", "ids": []string{}, "documents": []string{}},
			want:    "The 'ids' list cannot be empty.",
		},
		{
			name:    "update nothing to change",
			tool:    "update_documents",
			payload: map[string]any{"collection_name": "c", "ids": []string{"a"}},
			want:    "At least one of 'embeddings', 'metadatas', or 'documents' must be provided for update.",
		},
		{
			name:    "update embeddings mismatch first",
			tool:    "update_documents",
			payload: map[string]any{"collection_name": "c", "ids": []string{"a"}, "embeddings": [][]float32{{1}, {2}}, "documents": []string{}},
			want:    "Length of 'embeddings' list must match length of 'ids' list.",
		},
		{
			name:    "update metadatas mismatch",
			tool:    "update_documents",
			payload: map[string]any{"collection_name": "c", "ids": []string{"a"}, "metadatas": []map[string]any{}},
			want:    "Length of 'metadatas' list must match length of 'ids' list.",
		},
		{
			name:    "delete empty ids",
			tool:    "delete_documents",
			payload: map[string]any{"collection_name": "c", "ids": []string{}},
			want:    "The 'ids' list cannot be empty.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend("c")
			d := newTestDispatcher(t, backend)

			_, err := d.Dispatch(ctx, tt.tool, tt.payload)
			te := requireKind(t, err, tools.KindValidation)
			assert.Equal(t, tt.want, te.Message)
			assert.Equal(t, tools.CodeValidation, te.Kind.Code())
			assert.Empty(t, backend.Calls())
		})
	}
}

func TestDispatchMethodNotFound(t *testing.T) {
	backend := newFakeBackend()
	collector := metrics.NewCollector()
	d := tools.NewDispatcher(&tools.Dependencies{
		Backend: backend,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: collector,
	})

	res, err := d.Dispatch(context.Background(), "drop_everything", map[string]any{})
	assert.Nil(t, res)
	te := requireKind(t, err, tools.KindMethodNotFound)
	assert.Equal(t, "Method not found: drop_everything", te.Message)
	assert.Equal(t, tools.CodeMethodNotFound, te.Kind.Code())
	assert.Empty(t, backend.Calls())
	assert.Empty(t, collector.Snapshot().Tools)
}

func TestDispatchInvalidParams(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		tool    string
		payload any
	}{
		{name: "missing required field", tool: "delete_collection", payload: map[string]any{}},
		{name: "wrong type", tool: "get_collection_count", payload: map[string]any{"collection_name": 42}},
		{name: "wrong element type", tool: "add_documents", payload: map[string]any{"collection_name": "c", "documents": []any{1, 2}}},
		{name: "array payload", tool: "list_collections", payload: json.RawMessage(`[1,2]`)},
		{name: "malformed json", tool: "list_collections", payload: json.RawMessage(`{"limit":`)},
		{name: "string limit", tool: "list_collections", payload: map[string]any{"limit": "ten"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend("c")
			d := newTestDispatcher(t, backend)

			_, err := d.Dispatch(ctx, tt.tool, tt.payload)
			te := requireKind(t, err, tools.KindInvalidParams)
			assert.Contains(t, te.Message, "Invalid parameters for "+tt.tool)
			assert.Equal(t, tools.CodeInvalidParams, te.Kind.Code())
			assert.Empty(t, backend.Calls())
		})
	}

	t.Run("null values name the field and expected type", func(t *testing.T) {
		nulls := []struct {
			tool    string
			payload string
			want    string
		}{
			{"add_documents", `{"collection_name":"c","documents":["a",null]}`, "documents[1] must be a string, got null"},
			{"delete_documents", `{"collection_name":"c","ids":[null]}`, "ids[0] must be a string, got null"},
			{"get_collection_count", `{"collection_name":null}`, "collection_name must be a string, got null"},
		}
		for _, tt := range nulls {
			backend := newFakeBackend("c")
			d := newTestDispatcher(t, backend)

			_, err := d.Dispatch(ctx, tt.tool, json.RawMessage(tt.payload))
			te := requireKind(t, err, tools.KindInvalidParams)
			assert.Equal(t, "Invalid parameters for "+tt.tool+": "+tt.want, te.Message)
			assert.NotContains(t, te.Message, "reflect")
			assert.Empty(t, backend.Calls())
		}
	})

	t.Run("nil payload is an empty object", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend())
		res, err := d.Dispatch(ctx, "list_collections", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta"}, res)
	})

	t.Run("unknown keys are ignored", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend())
		_, err := d.Dispatch(ctx, "list_collections", map[string]any{"verbose": true})
		require.NoError(t, err)
	})
}

func TestDispatchBackendErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing collection passes message through", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend())

		_, err := d.Dispatch(ctx, "get_collection_count", map[string]any{"collection_name": "ghost"})
		te := requireKind(t, err, tools.KindBackend)
		assert.Equal(t, "collection not found: ghost", te.Message)
		assert.ErrorIs(t, err, chroma.ErrNotFound)
		assert.Equal(t, tools.CodeBackend, te.Kind.Code())
	})

	t.Run("create duplicate", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend("c"))

		_, err := d.Dispatch(ctx, "create_collection", map[string]any{"collection_name": "c"})
		requireKind(t, err, tools.KindBackend)
		assert.ErrorIs(t, err, chroma.ErrAlreadyExists)
	})

	t.Run("collaborator failure", func(t *testing.T) {
		backend := newFakeBackend("c")
		backend.failWith = errors.New("connection refused")
		d := newTestDispatcher(t, backend)

		_, err := d.Dispatch(ctx, "delete_documents", map[string]any{"collection_name": "c", "ids": []string{"a"}})
		te := requireKind(t, err, tools.KindBackend)
		assert.Equal(t, "connection refused", te.Message)
		assert.Equal(t, "delete_documents", te.Tool)
	})
}

func TestCollectionTools(t *testing.T) {
	ctx := context.Background()

	t.Run("create forwards options", func(t *testing.T) {
		backend := newFakeBackend()
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "create_collection", map[string]any{
			"collection_name":         "notes",
			"metadata":                map[string]any{"owner": "me"},
			"embedding_function_name": "default",
			"space":                   "cosine",
			"ef_construction":         100,
		})
		require.NoError(t, err)
		assert.Equal(t, "Successfully created collection notes", res)

		opts := backend.collections["notes"].created
		assert.Equal(t, map[string]any{"owner": "me"}, opts.Metadata)
		assert.Equal(t, "default", opts.EmbeddingFunction)
		require.NotNil(t, opts.HNSW.Space)
		assert.Equal(t, "cosine", *opts.HNSW.Space)
		require.NotNil(t, opts.HNSW.EfConstruction)
		assert.Equal(t, 100, *opts.HNSW.EfConstruction)
	})

	t.Run("create uses configured embedding function", func(t *testing.T) {
		backend := newFakeBackend()
		d := tools.NewDispatcher(&tools.Dependencies{
			Backend:           backend,
			Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
			EmbeddingFunction: "ollama",
		})

		_, err := d.Dispatch(ctx, "create_collection", map[string]any{"collection_name": "notes"})
		require.NoError(t, err)
		assert.Equal(t, "ollama", backend.collections["notes"].created.EmbeddingFunction)
	})

	t.Run("peek", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "peek_collection", map[string]any{"collection_name": "c", "limit": 2})
		require.NoError(t, err)
		assert.Equal(t, 2, backend.collections["c"].lastPeek)
		assert.Len(t, res.(*chroma.GetResult).IDs, 2)
	})

	t.Run("info", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "get_collection_info", map[string]any{"collection_name": "c"})
		require.NoError(t, err)
		info := res.(*tools.CollectionInfo)
		assert.Equal(t, "c", info.Name)
		assert.Equal(t, 42, info.Count)
		assert.Equal(t, 3, backend.collections["c"].lastPeek)
		assert.Equal(t, []string{"get_collection", "count", "peek"}, backend.Calls())
	})

	t.Run("count", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend("c"))

		res, err := d.Dispatch(ctx, "get_collection_count", map[string]any{"collection_name": "c"})
		require.NoError(t, err)
		assert.Equal(t, 42, res)
	})

	t.Run("delete", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "delete_collection", map[string]any{"collection_name": "c"})
		require.NoError(t, err)
		assert.Equal(t, "Successfully deleted collection c", res)
		assert.NotContains(t, backend.collections, "c")
	})

	modifyTests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "rename",
			payload: map[string]any{"collection_name": "c", "new_name": "d"},
			want:    "Successfully modified collection c: updated name",
		},
		{
			name:    "metadata and hnsw",
			payload: map[string]any{"collection_name": "c", "new_metadata": map[string]any{"a": 1}, "ef_search": 50},
			want:    "Successfully modified collection c: updated metadata and hnsw",
		},
		{
			name:    "everything",
			payload: map[string]any{"collection_name": "c", "new_name": "d", "new_metadata": map[string]any{}, "batch_size": 10},
			want:    "Successfully modified collection c: updated name and metadata and hnsw",
		},
		{
			name:    "nothing",
			payload: map[string]any{"collection_name": "c"},
			want:    "Successfully modified collection c: no changes requested",
		},
	}
	for _, tt := range modifyTests {
		t.Run("modify "+tt.name, func(t *testing.T) {
			backend := newFakeBackend("c")
			d := newTestDispatcher(t, backend)

			res, err := d.Dispatch(ctx, "modify_collection", tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}

	t.Run("modify forwards request", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		_, err := d.Dispatch(ctx, "modify_collection", map[string]any{"collection_name": "c", "new_name": "d", "ef_search": 50})
		require.NoError(t, err)

		m := backend.collections["c"].lastModify
		require.NotNil(t, m.NewName)
		assert.Equal(t, "d", *m.NewName)
		require.NotNil(t, m.HNSW.EfSearch)
		assert.Equal(t, 50, *m.HNSW.EfSearch)
		assert.Nil(t, m.HNSW.Space)
	})
}

func TestDocumentTools(t *testing.T) {
	ctx := context.Background()

	t.Run("update", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "update_documents", map[string]any{
			"collection_name": "c",
			"ids":             []string{"a", "b"},
			"metadatas":       []map[string]any{{"x": 1}, {"x": 2}},
		})
		require.NoError(t, err)
		assert.Equal(t, "Successfully updated 2 documents in collection 'c'", res)
		u := backend.collections["c"].lastUpdate
		assert.Equal(t, []string{"a", "b"}, u.IDs)
		assert.Nil(t, u.Documents)
		assert.Len(t, u.Metadatas, 2)
	})

	t.Run("delete", func(t *testing.T) {
		backend := newFakeBackend("c")
		d := newTestDispatcher(t, backend)

		res, err := d.Dispatch(ctx, "delete_documents", map[string]any{"collection_name": "c", "ids": []string{"a", "b", "c"}})
		require.NoError(t, err)
		assert.Equal(t, "Successfully deleted 3 documents from collection 'c'", res)
		assert.Equal(t, []string{"a", "b", "c"}, backend.collections["c"].lastDelete)
	})
}

type recordingObserver struct {
	started []string
	done    []tools.DispatchObservation
}

func (o *recordingObserver) StartDispatch(ctx context.Context, tool string) (context.Context, func(tools.DispatchObservation)) {
	o.started = append(o.started, tool)
	return ctx, func(obs tools.DispatchObservation) {
		o.done = append(o.done, obs)
	}
}

func TestDispatchInstrumentation(t *testing.T) {
	collector := metrics.NewCollector()
	observer := &recordingObserver{}
	d := tools.NewDispatcher(&tools.Dependencies{
		Backend:  newFakeBackend("c"),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  collector,
		Observer: observer,
	})
	ctx := context.Background()

	_, err := d.Dispatch(ctx, "get_collection_count", map[string]any{"collection_name": "c"})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, "get_collection_count", map[string]any{})
	require.Error(t, err)
	_, err = d.Dispatch(ctx, "nope", nil)
	require.Error(t, err)

	assert.Equal(t, []string{"get_collection_count", "get_collection_count"}, observer.started)
	require.Len(t, observer.done, 2)
	assert.True(t, observer.done[0].Success)
	assert.Empty(t, observer.done[0].ErrorKind)
	assert.False(t, observer.done[1].Success)
	assert.Equal(t, "invalid_params", observer.done[1].ErrorKind)

	op := collector.Tool("get_collection_count")
	require.NotNil(t, op)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(1), op.Errors)
}

func TestEnvelope(t *testing.T) {
	text := func(t *testing.T, r *mcp.CallToolResult) string {
		t.Helper()
		require.Len(t, r.Content, 1)
		tc, ok := r.Content[0].(*mcp.TextContent)
		require.True(t, ok)
		return tc.Text
	}

	t.Run("string verbatim", func(t *testing.T) {
		r := tools.Envelope("Successfully deleted collection c", nil)
		assert.False(t, r.IsError)
		assert.Equal(t, "Successfully deleted collection c", text(t, r))
	})

	t.Run("structured value as json", func(t *testing.T) {
		r := tools.Envelope(map[string]int{"count": 3}, nil)
		assert.False(t, r.IsError)
		assert.JSONEq(t, `{"count":3}`, text(t, r))
	})

	t.Run("typed error with hint", func(t *testing.T) {
		d := newTestDispatcher(t, newFakeBackend())
		_, err := d.Dispatch(context.Background(), "nope", nil)

		r := tools.Envelope(nil, err)
		assert.True(t, r.IsError)
		assert.Equal(t, "Method not found: nope. Call tools/list to see the available tools", text(t, r))
	})

	t.Run("plain error", func(t *testing.T) {
		r := tools.Envelope(nil, fmt.Errorf("boom"))
		assert.True(t, r.IsError)
		assert.Equal(t, "boom", text(t, r))
	})
}

func TestDispatchConcurrent(t *testing.T) {
	d := newTestDispatcher(t, newFakeBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errs := make(chan error, 20)
	for i := range 20 {
		go func() {
			_, err := d.Dispatch(ctx, "process_thought", map[string]any{
				"session_id":          fmt.Sprintf("s%d", i),
				"thought":             "t",
				"thought_number":      1,
				"total_thoughts":      1,
				"next_thought_needed": false,
			})
			errs <- err
		}()
	}
	for range 20 {
		require.NoError(t, <-errs)
	}
}
