package tools_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/raphaelgruber/chroma-mcp/internal/chroma"
)

// fakeBackend records every collaborator call and serves canned results.
type fakeBackend struct {
	mu          sync.Mutex
	calls       []string
	collections map[string]*fakeCollection
	failWith    error
}

func newFakeBackend(names ...string) *fakeBackend {
	b := &fakeBackend{collections: map[string]*fakeCollection{}}
	for _, n := range names {
		b.collections[n] = &fakeCollection{backend: b, name: n}
	}
	return b
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) ListCollections(_ context.Context, limit, offset *int) ([]string, error) {
	b.record("list_collections")
	return []string{"alpha", "beta"}, b.failWith
}

func (b *fakeBackend) CreateCollection(_ context.Context, name string, opts chroma.CreateOptions) (chroma.Collection, error) {
	b.record("create_collection")
	if b.failWith != nil {
		return nil, b.failWith
	}
	if _, ok := b.collections[name]; ok {
		return nil, fmt.Errorf("%w: %s", chroma.ErrAlreadyExists, name)
	}
	c := &fakeCollection{backend: b, name: name, created: opts}
	b.collections[name] = c
	return c, nil
}

func (b *fakeBackend) GetCollection(_ context.Context, name string) (chroma.Collection, error) {
	b.record("get_collection")
	c, ok := b.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chroma.ErrNotFound, name)
	}
	return c, nil
}

func (b *fakeBackend) DeleteCollection(_ context.Context, name string) error {
	b.record("delete_collection")
	if _, ok := b.collections[name]; !ok {
		return fmt.Errorf("%w: %s", chroma.ErrNotFound, name)
	}
	delete(b.collections, name)
	return nil
}

func (b *fakeBackend) Close(context.Context) error { return nil }

type fakeCollection struct {
	backend *fakeBackend
	name    string
	created chroma.CreateOptions

	lastAdd    chroma.AddRequest
	lastQuery  chroma.QueryRequest
	lastGet    chroma.GetRequest
	lastUpdate chroma.UpdateRequest
	lastDelete []string
	lastModify chroma.ModifyRequest
	lastPeek   int
}

func (c *fakeCollection) Name() string { return c.name }

func (c *fakeCollection) Add(_ context.Context, req chroma.AddRequest) error {
	c.backend.record("add")
	c.lastAdd = req
	return c.backend.failWith
}

func (c *fakeCollection) Query(_ context.Context, req chroma.QueryRequest) (*chroma.QueryResult, error) {
	c.backend.record("query")
	c.lastQuery = req
	return &chroma.QueryResult{IDs: [][]string{{"0"}}, Include: req.Include}, c.backend.failWith
}

func (c *fakeCollection) Get(_ context.Context, req chroma.GetRequest) (*chroma.GetResult, error) {
	c.backend.record("get")
	c.lastGet = req
	return &chroma.GetResult{IDs: []string{"0"}, Include: req.Include}, c.backend.failWith
}

func (c *fakeCollection) Update(_ context.Context, req chroma.UpdateRequest) error {
	c.backend.record("update")
	c.lastUpdate = req
	return c.backend.failWith
}

func (c *fakeCollection) Delete(_ context.Context, ids []string) error {
	c.backend.record("delete")
	c.lastDelete = ids
	return c.backend.failWith
}

func (c *fakeCollection) Count(context.Context) (int, error) {
	c.backend.record("count")
	return 42, c.backend.failWith
}

func (c *fakeCollection) Peek(_ context.Context, limit int) (*chroma.GetResult, error) {
	c.backend.record("peek")
	c.lastPeek = limit
	return &chroma.GetResult{IDs: []string{"0", "1", "2"}[:min(limit, 3)], Documents: []string{"a", "b", "c"}[:min(limit, 3)]}, c.backend.failWith
}

func (c *fakeCollection) Modify(_ context.Context, req chroma.ModifyRequest) error {
	c.backend.record("modify")
	c.lastModify = req
	return c.backend.failWith
}
