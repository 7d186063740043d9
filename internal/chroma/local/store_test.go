package local_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
	"github.com/raphaelgruber/chroma-mcp/internal/chroma/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *local.Store {
	t.Helper()
	s, err := local.Open(local.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func intPtr(v int) *int { return &v }

func TestCollections(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := s.CreateCollection(ctx, name, chroma.CreateOptions{})
		require.NoError(t, err)
	}

	_, err := s.CreateCollection(ctx, "alpha", chroma.CreateOptions{})
	assert.ErrorIs(t, err, chroma.ErrAlreadyExists)

	_, err = s.CreateCollection(ctx, "x", chroma.CreateOptions{})
	assert.ErrorIs(t, err, chroma.ErrInvalidArgument)

	_, err = s.CreateCollection(ctx, "delta", chroma.CreateOptions{EmbeddingFunction: "word2vec"})
	assert.ErrorIs(t, err, chroma.ErrInvalidArgument)

	names, err := s.ListCollections(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)

	names, err = s.ListCollections(ctx, intPtr(1), intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)

	require.NoError(t, s.DeleteCollection(ctx, "beta"))
	assert.ErrorIs(t, s.DeleteCollection(ctx, "beta"), chroma.ErrNotFound)

	_, err = s.GetCollection(ctx, "beta")
	assert.ErrorIs(t, err, chroma.ErrNotFound)
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	col, err := s.CreateCollection(ctx, "notes", chroma.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, col.Add(ctx, chroma.AddRequest{
		IDs:       []string{"a", "b", "c"},
		Documents: []string{"go channels and goroutines", "python asyncio event loop", "go interfaces"},
		Metadatas: []map[string]any{{"lang": "go", "year": 2012}, {"lang": "python"}, {"lang": "go", "year": 2009}},
	}))

	err = col.Add(ctx, chroma.AddRequest{IDs: []string{"a"}, Documents: []string{"dup"}})
	assert.ErrorIs(t, err, chroma.ErrInvalidArgument)

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Run("query ranks shared words first", func(t *testing.T) {
		res, err := col.Query(ctx, chroma.QueryRequest{
			QueryTexts: []string{"go goroutines"},
			NResults:   2,
			Include:    []string{chroma.IncludeDocuments, chroma.IncludeDistances},
		})
		require.NoError(t, err)
		require.Len(t, res.IDs, 1)
		assert.Equal(t, "a", res.IDs[0][0])
		assert.Len(t, res.Distances[0], 2)
		assert.LessOrEqual(t, res.Distances[0][0], res.Distances[0][1])
		assert.Nil(t, res.Metadatas)
	})

	t.Run("query with where filter", func(t *testing.T) {
		res, err := col.Query(ctx, chroma.QueryRequest{
			QueryTexts: []string{"event loop"},
			NResults:   5,
			Where:      map[string]any{"lang": "go"},
			Include:    []string{chroma.IncludeMetadatas},
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, res.IDs[0])
	})

	t.Run("get by filter with paging", func(t *testing.T) {
		res, err := col.Get(ctx, chroma.GetRequest{
			Where:   map[string]any{"year": map[string]any{"$gte": 2000}},
			Include: []string{chroma.IncludeDocuments},
			Offset:  intPtr(1),
			Limit:   intPtr(5),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, res.IDs)
		assert.Equal(t, []string{"go interfaces"}, res.Documents)
	})

	t.Run("get without filter pages in insertion order", func(t *testing.T) {
		res, err := col.Get(ctx, chroma.GetRequest{Offset: intPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, res.IDs)

		res, err = col.Get(ctx, chroma.GetRequest{Offset: intPtr(1), Limit: intPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, res.IDs)

		res, err = col.Get(ctx, chroma.GetRequest{Limit: intPtr(0)})
		require.NoError(t, err)
		assert.Empty(t, res.IDs)
	})

	t.Run("get rejects distances", func(t *testing.T) {
		_, err := col.Get(ctx, chroma.GetRequest{Include: []string{chroma.IncludeDistances}})
		assert.ErrorIs(t, err, chroma.ErrInvalidArgument)
	})

	t.Run("update merges metadata and re-embeds", func(t *testing.T) {
		before, err := col.Get(ctx, chroma.GetRequest{IDs: []string{"b"}, Include: []string{chroma.IncludeEmbeddings}})
		require.NoError(t, err)

		require.NoError(t, col.Update(ctx, chroma.UpdateRequest{
			IDs:       []string{"b"},
			Documents: []string{"rust async runtime"},
			Metadatas: []map[string]any{{"lang": "rust", "stars": 5}},
		}))

		after, err := col.Get(ctx, chroma.GetRequest{IDs: []string{"b"}, Include: []string{chroma.IncludeDocuments, chroma.IncludeMetadatas, chroma.IncludeEmbeddings}})
		require.NoError(t, err)
		assert.Equal(t, []string{"rust async runtime"}, after.Documents)
		assert.Equal(t, "rust", after.Metadatas[0]["lang"])
		assert.EqualValues(t, 5, after.Metadatas[0]["stars"])
		assert.NotEqual(t, before.Embeddings[0], after.Embeddings[0])

		err = col.Update(ctx, chroma.UpdateRequest{IDs: []string{"zzz"}, Documents: []string{"x"}})
		assert.ErrorIs(t, err, chroma.ErrInvalidArgument)
	})

	t.Run("peek and delete", func(t *testing.T) {
		peek, err := col.Peek(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, peek.IDs)

		require.NoError(t, col.Delete(ctx, []string{"a", "missing"}))
		n, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestModify(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	col, err := s.CreateCollection(ctx, "old-name", chroma.CreateOptions{})
	require.NoError(t, err)
	_, err = s.CreateCollection(ctx, "taken", chroma.CreateOptions{})
	require.NoError(t, err)

	taken := "taken"
	assert.ErrorIs(t, col.Modify(ctx, chroma.ModifyRequest{NewName: &taken}), chroma.ErrAlreadyExists)

	cosine := chroma.SpaceCosine
	assert.ErrorIs(t, col.Modify(ctx, chroma.ModifyRequest{HNSW: chroma.HNSWConfig{Space: &cosine}}), chroma.ErrInvalidArgument)

	newName := "new-name"
	require.NoError(t, col.Modify(ctx, chroma.ModifyRequest{
		NewName:     &newName,
		NewMetadata: map[string]any{"owner": "me"},
		HNSW:        chroma.HNSWConfig{EfSearch: intPtr(50)},
	}))
	assert.Equal(t, "new-name", col.Name())

	_, err = s.GetCollection(ctx, "new-name")
	require.NoError(t, err)
	_, err = s.GetCollection(ctx, "old-name")
	assert.ErrorIs(t, err, chroma.ErrNotFound)
}

func TestPersistentReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := local.Open(local.Config{DataDir: dir})
	require.NoError(t, err)
	col, err := s.CreateCollection(ctx, "kept", chroma.CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, col.Add(ctx, chroma.AddRequest{IDs: []string{"0"}, Documents: []string{"hello"}}))
	require.NoError(t, s.Close(ctx))

	s, err = local.Open(local.Config{DataDir: dir})
	require.NoError(t, err)
	defer s.Close(ctx)

	col, err = s.GetCollection(ctx, "kept")
	require.NoError(t, err)
	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, dir+"/"+local.DatabaseFile)
}

func TestPersistentConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s, err := local.Open(local.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close(ctx)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			col, err := s.CreateCollection(ctx, fmt.Sprintf("col-%02d", w), chroma.CreateOptions{})
			if err != nil {
				errs <- err
				return
			}
			for i := range 10 {
				err := col.Add(ctx, chroma.AddRequest{
					IDs:       []string{fmt.Sprint(i)},
					Documents: []string{fmt.Sprintf("document %d of worker %d", i, w)},
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	names, err := s.ListCollections(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, names, workers)
	for _, name := range names {
		col, err := s.GetCollection(ctx, name)
		require.NoError(t, err)
		n, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, n, name)
	}
}

func TestDeleteCollectionRemovesDocuments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := local.Open(local.Config{DataDir: dir})
	require.NoError(t, err)
	defer s.Close(ctx)

	col, err := s.CreateCollection(ctx, "doomed", chroma.CreateOptions{})
	require.NoError(t, err)
	require.NoError(t, col.Add(ctx, chroma.AddRequest{IDs: []string{"0", "1"}, Documents: []string{"a", "b"}}))
	require.NoError(t, s.DeleteCollection(ctx, "doomed"))

	// A separate connection without foreign_keys sees the raw table.
	raw, err := sql.Open("sqlite", filepath.Join(dir, local.DatabaseFile))
	require.NoError(t, err)
	defer raw.Close()

	var rows int
	require.NoError(t, raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&rows))
	assert.Zero(t, rows)
}

func TestModifyReplacesMetadata(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := local.Open(local.Config{DataDir: dir})
	require.NoError(t, err)
	defer s.Close(ctx)

	col, err := s.CreateCollection(ctx, "meta", chroma.CreateOptions{
		Metadata: map[string]any{"owner": "me", "stale": "yes"},
	})
	require.NoError(t, err)
	require.NoError(t, col.Modify(ctx, chroma.ModifyRequest{NewMetadata: map[string]any{"owner": "you"}}))

	raw, err := sql.Open("sqlite", filepath.Join(dir, local.DatabaseFile))
	require.NoError(t, err)
	defer raw.Close()

	var meta string
	require.NoError(t, raw.QueryRowContext(ctx, "SELECT metadata FROM collections WHERE name = ?", "meta").Scan(&meta))
	assert.JSONEq(t, `{"owner":"you"}`, meta)
}
